package capture

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/anime-shed/plant-inspector-go/internal/analyzer"
	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/i18n"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
	"github.com/anime-shed/plant-inspector-go/internal/observer"
	"github.com/anime-shed/plant-inspector-go/internal/overlay"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

// State is the scheduler lifecycle state
type State int

const (
	StateIdle State = iota
	StateCameraActive
	StateScanning
)

func (s State) String() string {
	switch s {
	case StateCameraActive:
		return "camera_active"
	case StateScanning:
		return "scanning"
	default:
		return "idle"
	}
}

// ScanUpdate is published after every analyzed tick and when the camera stops.
// Overlay is the canvas as drawn for exactly these detections; it is nil on
// the cleared update.
type ScanUpdate struct {
	State      State              `json:"-"`
	Generation uint64             `json:"generation"`
	FrameSeq   uint64             `json:"frame_seq"`
	FrameSize  image.Point        `json:"-"`
	Detections []models.Detection `json:"detections"`
	Overlay    *image.RGBA        `json:"-"`
	At         time.Time          `json:"at"`
}

// Snapshot is the result of a one-shot Capture
type Snapshot struct {
	Frame      Frame
	Detections []models.Detection
	Generation uint64
}

// Config wires a Scheduler
type Config struct {
	SessionID   string
	Camera      Camera
	Constraints Constraints
	Analyzer    analyzer.FrameAnalyzer
	Options     analyzer.AnalysisOptions
	Renderer    *overlay.Renderer
	Canvas      *overlay.Canvas
	NewTicker   TickerFactory
	Events      observer.Subject
}

// Scheduler drives the live scan: Idle -> CameraActive -> Scanning.
//
// Lifecycle calls are serialized by lifecycle; the scan loop and readers
// share state under mu. A generation counter is bumped whenever the camera
// starts or stops so work begun under an earlier stream can be discarded.
type Scheduler struct {
	sessionID   string
	camera      Camera
	constraints Constraints
	analyzer    analyzer.FrameAnalyzer
	renderer    *overlay.Renderer
	canvas      *overlay.Canvas
	newTicker   TickerFactory
	events      observer.Subject

	lifecycle sync.Mutex

	mu         sync.RWMutex
	state      State
	stream     Stream
	opts       analyzer.AnalysisOptions
	detections []models.Detection
	lastSeq    uint64
	frameSize  image.Point
	generation uint64
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	subsMu  sync.Mutex
	subs    map[int]chan ScanUpdate
	nextSub int
	closed  bool
}

// NewScheduler creates an idle scheduler. Missing collaborators get defaults:
// default constraints, a sequential colour analyzer, the default renderer, a
// fresh canvas, a 30 fps ticker and no event publishing.
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Constraints == (Constraints{}) {
		cfg.Constraints = DefaultConstraints()
	}
	if cfg.Analyzer == nil {
		cfg.Analyzer = analyzer.NewColorAnalyzer(nil)
	}
	if cfg.Renderer == nil {
		cfg.Renderer = overlay.NewRenderer(overlay.DefaultOptions())
	}
	if cfg.Canvas == nil {
		cfg.Canvas = overlay.NewCanvas()
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = IntervalTicker(DefaultFPS)
	}
	if cfg.Events == nil {
		cfg.Events = observer.Nop{}
	}
	if cfg.Options.GridSize == 0 {
		cfg.Options = analyzer.DefaultOptions()
	}
	return &Scheduler{
		sessionID:   cfg.SessionID,
		camera:      cfg.Camera,
		constraints: cfg.Constraints,
		analyzer:    cfg.Analyzer,
		renderer:    cfg.Renderer,
		canvas:      cfg.Canvas,
		newTicker:   cfg.NewTicker,
		events:      cfg.Events,
		opts:        cfg.Options,
		subs:        make(map[int]chan ScanUpdate),
	}
}

// StartCamera acquires the camera stream. It fails with a conflict error if a
// stream is already held and with a camera error if acquisition fails; in
// both cases the state is unchanged.
func (s *Scheduler) StartCamera(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	lang := s.Options().Language
	if s.isClosed() {
		return apperrors.NewConflictError(i18n.Message(i18n.MsgCameraInactive, lang), ErrClosed)
	}
	if s.State() != StateIdle {
		return apperrors.NewConflictError(i18n.Message(i18n.MsgCameraActive, lang), ErrAlreadyActive)
	}
	if s.camera == nil {
		return apperrors.NewCameraError(i18n.Message(i18n.MsgCameraDenied, lang), ErrNoStream)
	}

	stream, err := s.camera.Acquire(ctx, s.constraints)
	if err != nil {
		s.emit(observer.ScanEvent{EventType: observer.CameraFailed, ErrorMessage: err.Error()})
		return apperrors.NewCameraError(i18n.Message(i18n.MsgCameraDenied, lang), err)
	}

	s.mu.Lock()
	s.stream = stream
	s.state = StateCameraActive
	s.generation++
	s.lastSeq = 0
	s.detections = nil
	s.mu.Unlock()

	s.emit(observer.ScanEvent{EventType: observer.CameraStarted, Success: true})
	return nil
}

// StartScan starts the scan loop. Calling it while already scanning is a no-op.
func (s *Scheduler) StartScan() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.startScanLocked()
}

func (s *Scheduler) startScanLocked() error {
	switch s.State() {
	case StateScanning:
		return nil
	case StateIdle:
		return apperrors.NewConflictError(i18n.Message(i18n.MsgCameraInactive, s.Options().Language), ErrNotActive)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ticker := s.newTicker()

	s.mu.Lock()
	s.state = StateScanning
	s.loopCancel = cancel
	s.loopDone = done
	s.mu.Unlock()

	go s.loop(ctx, ticker, done)

	s.emit(observer.ScanEvent{EventType: observer.ScanStarted, Success: true})
	return nil
}

// PauseScan stops the loop after its in-flight tick. Detections and the
// overlay keep their last values. Calling it while not scanning is a no-op.
func (s *Scheduler) PauseScan() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.pauseScanLocked()
}

func (s *Scheduler) pauseScanLocked() {
	if s.State() != StateScanning {
		return
	}
	s.stopLoop()

	s.mu.Lock()
	s.state = StateCameraActive
	s.mu.Unlock()

	s.emit(observer.ScanEvent{EventType: observer.ScanPaused, Success: true})
}

// ToggleScan pauses a running scan or starts a paused one and returns the
// resulting state.
func (s *Scheduler) ToggleScan() (State, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.State() == StateScanning {
		s.pauseScanLocked()
		return s.State(), nil
	}
	err := s.startScanLocked()
	return s.State(), err
}

// StopCamera stops the loop, closes the stream, clears detections and the
// overlay and returns to Idle. It is idempotent.
func (s *Scheduler) StopCamera() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopCameraLocked()
}

func (s *Scheduler) stopCameraLocked() {
	if s.State() == StateIdle {
		return
	}
	s.stopLoop()

	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.state = StateIdle
	s.detections = nil
	s.lastSeq = 0
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	if stream != nil {
		if err := stream.Close(); err != nil {
			logger.WithSession(s.sessionID).WithError(err).Warn("Failed to close camera stream")
		}
	}
	s.canvas.Clear()

	s.publish(ScanUpdate{State: StateIdle, Generation: gen, Detections: []models.Detection{}, At: time.Now()})
	s.emit(observer.ScanEvent{EventType: observer.CameraStopped, Success: true})
}

// Close stops the camera and closes every subscription channel. It is the
// teardown used on every exit path and is safe to call more than once.
func (s *Scheduler) Close() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopCameraLocked()

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	return nil
}

// Capture analyzes the latest frame once without changing state
func (s *Scheduler) Capture(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	state, stream, opts, gen := s.state, s.stream, s.opts, s.generation
	s.mu.RUnlock()

	if state == StateIdle || stream == nil {
		return nil, apperrors.NewConflictError(i18n.Message(i18n.MsgCameraInactive, opts.Language), ErrNotActive)
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError(i18n.Message(i18n.MsgAnalysisTimeout, opts.Language), err)
	}
	frame, ok := stream.LatestFrame()
	if !ok {
		return nil, apperrors.NewProcessingError(i18n.Message(i18n.MsgNoFrame, opts.Language), ErrNoFrame)
	}

	start := time.Now()
	dets := s.analyzer.Analyze(frame.Image, opts.ForFrame(frame.Seq))
	s.emit(observer.ScanEvent{
		EventType:      observer.FrameAnalyzed,
		Source:         observer.SourceCapture,
		ProcessingTime: time.Since(start),
		Detections:     dets,
		Success:        true,
	})
	return &Snapshot{Frame: frame, Detections: dets, Generation: gen}, nil
}

// SetOptions replaces the analysis options used from the next tick on
func (s *Scheduler) SetOptions(opts analyzer.AnalysisOptions) error {
	if err := opts.Validate(); err != nil {
		return apperrors.NewValidationError("invalid scan settings", err)
	}
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
	return nil
}

// SetRenderOptions replaces the overlay options used from the next tick on
func (s *Scheduler) SetRenderOptions(opts overlay.Options) {
	s.renderer.SetOptions(opts)
}

// RenderOptions returns the overlay options in use
func (s *Scheduler) RenderOptions() overlay.Options {
	return s.renderer.Options()
}

// Subscribe returns a channel of scan updates and a cancel func. Sends never
// block the loop: a subscriber that has not drained its previous update gets
// the newer one in its place.
func (s *Scheduler) Subscribe() (<-chan ScanUpdate, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	ch := make(chan ScanUpdate, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// State returns the current lifecycle state
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Detections returns a copy of the latest detections
func (s *Scheduler) Detections() []models.Detection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Detection, len(s.detections))
	copy(out, s.detections)
	return out
}

// FrameSeq returns the sequence number of the last analyzed frame
func (s *Scheduler) FrameSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

// FrameSize returns the dimensions of the last analyzed frame
func (s *Scheduler) FrameSize() image.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frameSize
}

// Generation returns the camera generation
func (s *Scheduler) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Options returns the current analysis options
func (s *Scheduler) Options() analyzer.AnalysisOptions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// Canvas returns the overlay canvas
func (s *Scheduler) Canvas() *overlay.Canvas {
	return s.canvas
}

// Constraints returns the capture constraints requested from the camera
func (s *Scheduler) Constraints() Constraints {
	return s.constraints
}

// stopLoop cancels the scan loop and waits for it to exit. Caller holds
// lifecycle but not mu.
func (s *Scheduler) stopLoop() {
	s.mu.Lock()
	cancel, done := s.loopCancel, s.loopDone
	s.loopCancel, s.loopDone = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Scheduler) loop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			s.tick()
		}
	}
}

// tick runs one loop iteration over the latest frame. Ticks with no frame or
// with a frame already analyzed are skipped.
func (s *Scheduler) tick() {
	s.mu.RLock()
	stream, opts, lastSeq, gen := s.stream, s.opts, s.lastSeq, s.generation
	s.mu.RUnlock()

	if stream == nil {
		s.skip("no_stream")
		return
	}
	frame, ok := stream.LatestFrame()
	if !ok || frame.Image == nil {
		s.skip("no_frame")
		return
	}
	if frame.Seq == lastSeq {
		s.skip("stale_frame")
		return
	}

	start := time.Now()
	dets := s.analyzer.Analyze(frame.Image, opts.ForFrame(frame.Seq))
	size := frame.Size()

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.detections = dets
	s.lastSeq = frame.Seq
	s.frameSize = size
	s.mu.Unlock()

	s.renderer.Render(s.canvas, dets, size)

	s.publish(ScanUpdate{
		State:      StateScanning,
		Generation: gen,
		FrameSeq:   frame.Seq,
		FrameSize:  size,
		Detections: dets,
		Overlay:    s.canvas.Snapshot(),
		At:         time.Now(),
	})
	s.emit(observer.ScanEvent{
		EventType:      observer.FrameAnalyzed,
		Source:         observer.SourceLive,
		ProcessingTime: time.Since(start),
		Detections:     dets,
		Success:        true,
	})
}

func (s *Scheduler) isClosed() bool {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return s.closed
}

func (s *Scheduler) skip(reason string) {
	logger.WithSession(s.sessionID).WithField("reason", reason).Debug("Scan tick skipped")
	s.emit(observer.ScanEvent{EventType: observer.FrameSkipped, Reason: reason})
}

func (s *Scheduler) publish(u ScanUpdate) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		// Replace the undelivered update with the newer one
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

func (s *Scheduler) emit(e observer.ScanEvent) {
	e.SessionID = s.sessionID
	s.events.NotifyObservers(context.Background(), e)
}

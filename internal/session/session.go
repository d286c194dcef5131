// Package session keeps the registry of live scan sessions. Each session
// owns one scheduler fed by one frame feed.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anime-shed/plant-inspector-go/internal/capture"
	"github.com/anime-shed/plant-inspector-go/internal/diagnosis"
	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/i18n"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
	"github.com/anime-shed/plant-inspector-go/internal/observer"
	"github.com/anime-shed/plant-inspector-go/pkg/models"
	"github.com/anime-shed/plant-inspector-go/pkg/services"
)

// ErrStaleDiagnosis is wrapped when the camera restarted while a diagnosis was in flight
var ErrStaleDiagnosis = errors.New("diagnosis belongs to an earlier camera stream")

// Session is one live scan: a frame feed, its scheduler and the latest diagnosis
type Session struct {
	ID        string
	CreatedAt time.Time

	feed      *capture.FeedCamera
	scheduler *capture.Scheduler
	bridge    *diagnosis.Bridge
	events    observer.Subject
	now       func() time.Time

	lastSeen atomic.Int64
	inFlight atomic.Int32

	mu        sync.RWMutex
	diagnosis *models.DiagnosisResult
}

// Scheduler returns the session's scan scheduler
func (s *Session) Scheduler() *capture.Scheduler {
	return s.scheduler
}

// Feed returns the camera feed frames are pushed into
func (s *Session) Feed() *capture.FeedCamera {
	return s.feed
}

// Touch marks the session as used
func (s *Session) Touch() {
	s.lastSeen.Store(s.now().UnixNano())
}

// LastSeen is the time of the last Touch
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// Analyzing reports whether a diagnosis for this session is in flight
func (s *Session) Analyzing() bool {
	return s.inFlight.Load() > 0
}

// LastDiagnosis returns the most recent accepted diagnosis, if any
func (s *Session) LastDiagnosis() *models.DiagnosisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.diagnosis
}

// PushFrame decodes an encoded frame into the session feed
func (s *Session) PushFrame(data []byte) (uint64, error) {
	s.Touch()
	seq, err := s.feed.PushEncoded(data)
	if errors.Is(err, capture.ErrNoStream) {
		lang := s.scheduler.Options().Language
		return 0, apperrors.NewConflictError(i18n.Message(i18n.MsgCameraInactive, lang), err)
	}
	if err != nil {
		return 0, apperrors.NewValidationError("invalid frame", err)
	}
	return seq, nil
}

// Capture analyzes the latest frame once without changing the scan state
func (s *Session) Capture(ctx context.Context) (*capture.Snapshot, error) {
	s.Touch()
	return s.scheduler.Capture(ctx)
}

// Diagnose captures the latest frame and sends it to the vision model. The result is tagged
// with the camera generation it was taken under and dropped if the camera
// was stopped or restarted before it arrived.
func (s *Session) Diagnose(ctx context.Context) (*models.DiagnosisResult, error) {
	s.Touch()
	lang := s.scheduler.Options().Language
	if s.bridge == nil {
		return nil, apperrors.NewInternalError(i18n.Message(i18n.MsgAnalysisFailed, lang), diagnosis.ErrNotConfigured)
	}

	snap, err := s.scheduler.Capture(ctx)
	if err != nil {
		return nil, err
	}
	return s.DiagnoseSnapshot(ctx, snap)
}

// DiagnoseSnapshot sends the frame of an earlier Capture to the vision model,
// so the diagnosis describes the same frame as the snapshot's detections.
// The same generation check as Diagnose applies.
func (s *Session) DiagnoseSnapshot(ctx context.Context, snap *capture.Snapshot) (*models.DiagnosisResult, error) {
	s.Touch()
	lang := s.scheduler.Options().Language
	if s.bridge == nil {
		return nil, apperrors.NewInternalError(i18n.Message(i18n.MsgAnalysisFailed, lang), diagnosis.ErrNotConfigured)
	}
	if snap == nil || snap.Frame.Image == nil {
		return nil, apperrors.NewProcessingError(i18n.Message(i18n.MsgNoFrame, lang), capture.ErrNoFrame)
	}

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	start := s.now()
	result, err := s.bridge.Diagnose(ctx, snap.Frame.Image, lang)
	if err != nil {
		s.emit(observer.ScanEvent{
			EventType:      observer.DiagnosisFailed,
			ProcessingTime: time.Since(start),
			ErrorMessage:   err.Error(),
		})
		return nil, err
	}

	if gen := s.scheduler.Generation(); gen != snap.Generation {
		logger.WithSession(s.ID).WithFields(map[string]interface{}{
			"generation": snap.Generation,
			"current":    gen,
		}).Info("Dropping stale diagnosis")
		s.emit(observer.ScanEvent{EventType: observer.DiagnosisDropped, ProcessingTime: time.Since(start)})
		return nil, apperrors.NewConflictError(i18n.Message(i18n.MsgCameraInactive, lang), ErrStaleDiagnosis)
	}

	result.Generation = snap.Generation
	s.mu.Lock()
	s.diagnosis = result
	s.mu.Unlock()

	s.emit(observer.ScanEvent{
		EventType:      observer.DiagnosisCompleted,
		ProcessingTime: time.Since(start),
		Success:        true,
	})
	return result, nil
}

// Response renders the session state for the API
func (s *Session) Response() models.SessionResponse {
	dets := s.scheduler.Detections()
	return models.SessionResponse{
		ID:         s.ID,
		State:      s.scheduler.State().String(),
		Analyzing:  s.Analyzing(),
		Detections: dets,
		Summary:    services.Summarize(dets, s.scheduler.FrameSize()),
		FrameSeq:   s.scheduler.FrameSeq(),
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Session) close() error {
	s.scheduler.StopCamera()
	return s.scheduler.Close()
}

func (s *Session) emit(e observer.ScanEvent) {
	e.SessionID = s.ID
	if e.Source == "" {
		e.Source = observer.SourceCapture
	}
	s.events.NotifyObservers(context.Background(), e)
}

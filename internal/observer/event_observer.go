package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/plant-inspector-go/pkg/models"
)

// ScanEvent represents a camera, scan or diagnosis event
type ScanEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	SessionID      string                 `json:"session_id,omitempty"`
	Source         string                 `json:"source,omitempty"`
	ImageURL       string                 `json:"image_url,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Reason         string                 `json:"reason,omitempty"`
	Detections     []models.Detection     `json:"-"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of scan event
type EventType string

const (
	SessionCreated EventType = "session_created"
	SessionClosed  EventType = "session_closed"

	CameraStarted EventType = "camera_started"
	CameraFailed  EventType = "camera_failed"
	CameraStopped EventType = "camera_stopped"

	ScanStarted EventType = "scan_started"
	ScanPaused  EventType = "scan_paused"

	// FrameAnalyzed is emitted once per completed tick or capture
	FrameAnalyzed EventType = "frame_analyzed"
	// FrameSkipped is emitted when a tick had nothing new to analyze
	FrameSkipped EventType = "frame_skipped"

	DiagnosisCompleted EventType = "diagnosis_completed"
	DiagnosisFailed    EventType = "diagnosis_failed"
	DiagnosisDropped   EventType = "diagnosis_dropped"

	ImageFetched     EventType = "image_fetched"
	ImageFetchFailed EventType = "image_fetch_failed"
)

// Event sources
const (
	SourceLive    = "live"
	SourceCapture = "capture"
	SourceStatic  = "static"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event ScanEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event ScanEvent)
}

// LoggingObserver logs scan events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles scan events by logging them. Per-frame events are logged at
// debug level so a 30 fps loop does not flood the log.
func (o *LoggingObserver) OnEvent(ctx context.Context, event ScanEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"success":    event.Success,
	}
	if event.SessionID != "" {
		fields["session_id"] = event.SessionID
	}
	if event.Source != "" {
		fields["source"] = event.Source
	}
	if event.ImageURL != "" {
		fields["image_url"] = event.ImageURL
	}
	if event.ProcessingTime > 0 {
		fields["processing_time"] = event.ProcessingTime
	}
	if event.Detections != nil {
		fields["detections"] = len(event.Detections)
	}
	if event.Reason != "" {
		fields["reason"] = event.Reason
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case SessionCreated:
		entry.Info("Scan session created")
	case SessionClosed:
		entry.Info("Scan session closed")
	case CameraStarted:
		entry.Info("Camera started")
	case CameraStopped:
		entry.Info("Camera stopped")
	case CameraFailed:
		entry.Error("Camera acquisition failed")
	case ScanStarted:
		entry.Info("Scanning started")
	case ScanPaused:
		entry.Info("Scanning paused")
	case FrameAnalyzed:
		entry.Debug("Frame analyzed")
	case FrameSkipped:
		entry.Debug("Frame skipped")
	case DiagnosisCompleted:
		entry.Info("Diagnosis completed")
	case DiagnosisFailed:
		entry.Error("Diagnosis failed")
	case DiagnosisDropped:
		entry.Warn("Stale diagnosis dropped")
	case ImageFetched:
		entry.Debug("Image fetched successfully")
	case ImageFetchFailed:
		entry.Error("Image fetch failed")
	default:
		entry.Info("Scan event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers delivers event to every observer in subscription order on
// the caller's goroutine. Observers must be fast; a panicking observer is
// logged and skipped.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event ScanEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, obs := range observers {
		notify(ctx, obs, event)
	}
}

func notify(ctx context.Context, obs Observer, event ScanEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the scan loop
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}

// Nop is a Subject that drops every event
type Nop struct{}

func (Nop) Subscribe(Observer) {}

func (Nop) Unsubscribe(Observer) {}

func (Nop) NotifyObservers(context.Context, ScanEvent) {}

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anime-shed/plant-inspector-go/internal/analyzer"
	"github.com/anime-shed/plant-inspector-go/internal/capture"
	"github.com/anime-shed/plant-inspector-go/internal/diagnosis"
	apperrors "github.com/anime-shed/plant-inspector-go/internal/errors"
	"github.com/anime-shed/plant-inspector-go/internal/logger"
	"github.com/anime-shed/plant-inspector-go/internal/observer"
	"github.com/anime-shed/plant-inspector-go/internal/overlay"
)

// Close reasons reported on SessionClosed events
const (
	ReasonClosed   = "closed"
	ReasonIdle     = "idle"
	ReasonShutdown = "shutdown"
)

// DefaultIdleTimeout is used when Config.IdleTimeout is zero
const DefaultIdleTimeout = 10 * time.Minute

// Config holds what every new session is built from
type Config struct {
	Options       analyzer.AnalysisOptions
	RenderOptions overlay.Options
	FPS           int
	IdleTimeout   time.Duration
	MaxSessions   int

	Analyzer  analyzer.FrameAnalyzer
	Bridge    *diagnosis.Bridge
	Events    observer.Subject
	NewTicker capture.TickerFactory
	Now       func() time.Time
}

// Manager is the registry of live sessions
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty registry
func NewManager(cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Options.GridSize == 0 {
		cfg.Options = analyzer.DefaultOptions()
	}
	if cfg.RenderOptions == (overlay.Options{}) {
		cfg.RenderOptions = overlay.DefaultOptions()
	}
	if cfg.Events == nil {
		cfg.Events = observer.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewTicker == nil && cfg.FPS > 0 {
		cfg.NewTicker = capture.IntervalTicker(cfg.FPS)
	}
	return &Manager{cfg: cfg, sessions: make(map[string]*Session)}
}

// Create registers a new idle session with its own feed, canvas and renderer
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, apperrors.NewConflictError("too many active scan sessions", nil).
			WithDetails(fmt.Sprintf("limit is %d", m.cfg.MaxSessions))
	}

	id := uuid.NewString()
	feed := capture.NewFeedCamera()
	s := &Session{
		ID:        id,
		CreatedAt: m.cfg.Now(),
		feed:      feed,
		bridge:    m.cfg.Bridge,
		events:    m.cfg.Events,
		now:       m.cfg.Now,
		scheduler: capture.NewScheduler(capture.Config{
			SessionID: id,
			Camera:    feed,
			Analyzer:  m.cfg.Analyzer,
			Options:   m.cfg.Options,
			Renderer:  overlay.NewRenderer(m.cfg.RenderOptions),
			Canvas:    overlay.NewCanvas(),
			NewTicker: m.cfg.NewTicker,
			Events:    m.cfg.Events,
		}),
	}
	s.Touch()
	m.sessions[id] = s

	logger.WithSession(id).Info("Scan session created")
	s.emit(observer.ScanEvent{EventType: observer.SessionCreated, Source: observer.SourceLive, Success: true})
	return s, nil
}

// Get returns a session and marks it as used
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("scan session not found", nil).WithDetails(id)
	}
	s.Touch()
	return s, nil
}

// Close stops the session's camera and removes it
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return apperrors.NewNotFoundError("scan session not found", nil).WithDetails(id)
	}
	m.release(s, ReasonClosed)
	return nil
}

// CloseAll tears down every session
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		m.release(s, ReasonShutdown)
	}
}

// Reap closes sessions idle for longer than the idle timeout and returns how many
func (m *Manager) Reap() int {
	cutoff := m.cfg.Now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		m.release(s, ReasonIdle)
	}
	return len(stale)
}

// Run reaps idle sessions every interval until ctx is done
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.cfg.IdleTimeout / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Reap(); n > 0 {
				logger.WithField("reaped", n).Info("Closed idle scan sessions")
			}
		}
	}
}

// Len is the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) release(s *Session, reason string) {
	if err := s.close(); err != nil {
		logger.WithSession(s.ID).WithError(err).Warn("Error closing scan session")
	}
	logger.WithSession(s.ID).WithField("reason", reason).Info("Scan session closed")
	s.emit(observer.ScanEvent{EventType: observer.SessionClosed, Source: observer.SourceLive, Reason: reason, Success: true})
}

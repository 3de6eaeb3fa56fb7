package session

import (
	"context"
	"sync"
	"time"

	"github.com/ordervoice/voicemetrics/internal/metrics"
	"github.com/ordervoice/voicemetrics/internal/router"
	"github.com/ordervoice/voicemetrics/internal/storage"
	"github.com/ordervoice/voicemetrics/internal/turn"
	"github.com/ordervoice/voicemetrics/internal/types"
	"github.com/rs/zerolog"
)

// sweepInterval is how often the manager scans for idle sessions.
const sweepInterval = 30 * time.Second

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithAgentVersion tags every tracker this manager creates.
func WithAgentVersion(v string) ManagerOption {
	return func(m *Manager) { m.agentVersion = v }
}

// Manager owns the live sessions. It creates a tracker/router pair per
// call, persists the call record envelope, and sweeps sessions whose
// pipeline stopped sending events without a clean end.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store        storage.Store
	logger       zerolog.Logger
	idleTimeout  time.Duration
	agentVersion string
	now          func() time.Time
	onFlush      func(types.TurnMetric)
}

// NewManager creates a session manager backed by store.
func NewManager(store storage.Store, idleTimeout time.Duration, logger zerolog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		store:       store,
		logger:      logger,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnFlush registers a callback invoked with every turn record flushed by
// any session's tracker. Used by the aggregator to keep its live view.
func (m *Manager) OnFlush(fn func(types.TurnMetric)) {
	m.mu.Lock()
	m.onFlush = fn
	m.mu.Unlock()
}

// Start opens a session for callID. Starting an already-open call returns
// the existing session untouched, so a duplicated session_started event
// cannot reset a live tracker.
func (m *Manager) Start(callID, callerNumber, region string, model types.ModelConfig) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[callID]; ok {
		m.logger.Warn().Str("call_id", callID).Msg("session already started, ignoring duplicate")
		return s
	}

	now := m.now()
	tr := turn.NewTracker(m.store, m.logger,
		turn.WithClock(m.now),
		turn.WithAgentVersion(m.agentVersion),
	)
	tr.SetCallInfo(callID, region)
	tr.SetModelConfig(model)
	if m.onFlush != nil {
		tr.OnFlush(m.onFlush)
	}

	s := &Session{
		CallID:       callID,
		CallerNumber: callerNumber,
		Region:       region,
		Model:        model,
		Tracker:      tr,
		Router:       router.NewRouter(tr, m.logger.With().Str("call_id", callID).Logger()),
		startedAt:    now,
		lastEvent:    now,
	}
	m.sessions[callID] = s
	metrics.Get().RecordSessionStarted()

	go m.persistCallRecord(s, "in_progress", time.Time{})

	m.logger.Info().
		Str("call_id", callID).
		Str("region", region).
		Int("active_sessions", len(m.sessions)).
		Msg("session started")
	return s
}

// Get returns the session for callID, if open.
func (m *Manager) Get(callID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[callID]
	return s, ok
}

// End closes the session for callID and marks its call record completed.
// Ending an unknown call is a no-op.
func (m *Manager) End(callID string) {
	m.mu.Lock()
	s, ok := m.sessions[callID]
	if ok {
		delete(m.sessions, callID)
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		m.logger.Debug().Str("call_id", callID).Msg("end for unknown session ignored")
		return
	}

	metrics.Get().RecordSessionEnded()
	endedAt := m.now()
	go m.persistCallRecord(s, "completed", endedAt)

	m.logger.Info().
		Str("call_id", callID).
		Int("turns", s.Tracker.TurnCount()).
		Float64("duration_s", endedAt.Sub(s.StartedAt()).Seconds()).
		Int("active_sessions", remaining).
		Msg("session ended")
}

// ActiveCount returns the number of open sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Snapshot returns the open sessions for read-side consumers.
func (m *Manager) Snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Run sweeps idle sessions until ctx is cancelled. A session whose last
// event is older than the idle timeout is closed as if its pipeline had
// sent a clean end.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	m.logger.Info().Dur("idle_timeout", m.idleTimeout).Msg("session sweeper started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("session sweeper stopped")
			return
		case <-ticker.C:
			m.SweepIdle()
		}
	}
}

// SweepIdle ends every session idle past the timeout and returns how many
// were closed.
func (m *Manager) SweepIdle() int {
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.LastEvent().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		m.logger.Warn().Str("call_id", id).Msg("sweeping idle session")
		m.End(id)
	}
	if n := len(stale); n > 0 {
		metrics.Get().RecordSessionsSwept(n)
	}
	return len(stale)
}

// persistCallRecord writes the call envelope. Runs on its own goroutine;
// failure is logged and never raised.
func (m *Manager) persistCallRecord(s *Session, status string, endedAt time.Time) {
	started := s.StartedAt()
	rec := types.CallRecord{
		DateKey:      started.UTC().Format("2006-01-02"),
		CallID:       s.CallID,
		CallerNumber: s.CallerNumber,
		Region:       s.Region,
		AgentVersion: m.agentVersion,
		Status:       status,
		StartedAt:    started.UTC().Format(time.RFC3339),
	}
	if !endedAt.IsZero() {
		rec.EndedAt = endedAt.UTC().Format(time.RFC3339)
		rec.DurationSeconds = int(endedAt.Sub(started).Seconds())
		rec.Turns = s.Tracker.TurnCount()
	}

	if err := m.store.SaveCallRecord(rec); err != nil {
		m.logger.Error().Err(err).
			Str("call_id", s.CallID).
			Str("status", status).
			Msg("failed to save call record")
	}
}

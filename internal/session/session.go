package session

import (
	"sync"
	"time"

	"github.com/ordervoice/voicemetrics/internal/router"
	"github.com/ordervoice/voicemetrics/internal/turn"
	"github.com/ordervoice/voicemetrics/internal/types"
)

// Session holds the per-call pipeline state: one tracker, one router, and
// the identity fields persisted with every record. All event handling for
// a call flows through its session.
type Session struct {
	CallID       string
	CallerNumber string
	Region       string
	Model        types.ModelConfig

	Tracker *turn.Tracker
	Router  *router.Router

	mu        sync.Mutex
	startedAt time.Time
	lastEvent time.Time
}

// Touch records event activity, deferring the idle sweep.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastEvent = now
	s.mu.Unlock()
}

// LastEvent returns the time of the most recent event on this session.
func (s *Session) LastEvent() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEvent
}

// StartedAt returns when the session was opened.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

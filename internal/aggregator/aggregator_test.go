package aggregator

import (
	"testing"
	"time"

	"github.com/ordervoice/voicemetrics/internal/alerts"
	"github.com/ordervoice/voicemetrics/internal/session"
	"github.com/ordervoice/voicemetrics/internal/storage"
	"github.com/ordervoice/voicemetrics/internal/types"
	"github.com/ordervoice/voicemetrics/internal/websocket"
	"github.com/rs/zerolog"
)

func newTestAggregator(t *testing.T) (*Aggregator, *session.Manager) {
	t.Helper()
	store := storage.NewNoopStore(zerolog.Nop())
	manager := session.NewManager(store, 10*time.Minute, zerolog.Nop())
	hub := websocket.NewHub(zerolog.Nop())
	agg := NewAggregator(manager, hub, alerts.Thresholds{WarnMs: 1500, CritMs: 3000}, zerolog.Nop())
	manager.OnFlush(agg.RecordFlush)
	return agg, manager
}

func completeTurn(s *session.Session) {
	s.Tracker.OnUserStartedSpeaking()
	s.Tracker.OnUserStoppedSpeaking()
	s.Tracker.OnSTTComplete("hello")
	s.Tracker.OnLLMComplete("hi there", 0, 0)
	s.Tracker.OnAgentStartedSpeaking()
	s.Tracker.OnAgentStoppedSpeaking()
}

func TestBuildWidgetSnapshotsActiveCalls(t *testing.T) {
	agg, manager := newTestAggregator(t)

	a := manager.Start("call-a", "", "eu-west-1", types.ModelConfig{})
	manager.Start("call-b", "", "us-east-1", types.ModelConfig{})
	completeTurn(a)

	w := agg.buildWidget()
	if w.Type != "latency_overview" {
		t.Errorf("unexpected widget type %q", w.Type)
	}
	if w.ActiveCalls != 2 {
		t.Errorf("expected 2 active calls, got %d", w.ActiveCalls)
	}
	if len(w.Calls) != 2 || w.Calls[0].CallID != "call-a" || w.Calls[1].CallID != "call-b" {
		t.Errorf("expected sorted calls a,b, got %+v", w.Calls)
	}
	if w.TurnsFlushed != 1 {
		t.Errorf("expected 1 flushed turn, got %d", w.TurnsFlushed)
	}
	if w.Calls[0].Summary.Turns != 1 {
		t.Errorf("expected call-a to report 1 turn, got %d", w.Calls[0].Summary.Turns)
	}
	if w.Calls[1].Summary.Turns != 0 {
		t.Errorf("expected call-b to report 0 turns, got %d", w.Calls[1].Summary.Turns)
	}
}

func TestGlobalSummaryWeightsByTurns(t *testing.T) {
	calls := []types.CallLatency{
		{CallID: "a", Summary: types.LatencySummary{Turns: 3, MinTTFBMs: 400, AvgTTFBMs: 600, MaxTTFBMs: 900}},
		{CallID: "b", Summary: types.LatencySummary{Turns: 1, MinTTFBMs: 1000, AvgTTFBMs: 1000, MaxTTFBMs: 1000}},
		{CallID: "idle", Summary: types.LatencySummary{}},
	}

	g := globalSummary(calls)
	if g.Turns != 4 {
		t.Errorf("expected 4 turns, got %d", g.Turns)
	}
	if g.AvgTTFBMs != 700.0 {
		t.Errorf("expected weighted avg 700.0, got %v", g.AvgTTFBMs)
	}
	if g.MinTTFBMs != 400 || g.MaxTTFBMs != 1000 {
		t.Errorf("unexpected min/max: %v/%v", g.MinTTFBMs, g.MaxTTFBMs)
	}
}

func TestGlobalSummaryEmptyFleet(t *testing.T) {
	g := globalSummary(nil)
	if g != (types.LatencySummary{}) {
		t.Errorf("expected zero summary, got %+v", g)
	}
}

package router

import (
	"testing"
	"time"

	"github.com/ordervoice/voicemetrics/internal/turn"
	"github.com/ordervoice/voicemetrics/internal/types"
	"github.com/rs/zerolog"
)

// trackerStore is the minimal store the tracker needs in these tests.
type trackerStore struct {
	records chan types.TurnMetric
}

func (s *trackerStore) SaveTurnMetric(m types.TurnMetric) error {
	s.records <- m
	return nil
}
func (s *trackerStore) SaveCallRecord(types.CallRecord) error             { return nil }
func (s *trackerStore) GetTurnMetrics(string) ([]types.TurnMetric, error) { return nil, nil }
func (s *trackerStore) GetCallRecords(string) ([]types.CallRecord, error) { return nil, nil }
func (s *trackerStore) GetMenuItems() ([]types.MenuItem, error)           { return nil, nil }

func flushTurn(t *testing.T, tr *turn.Tracker, store *trackerStore) types.TurnMetric {
	t.Helper()
	tr.OnLLMComplete("ok", 0, 0)
	tr.OnAgentStartedSpeaking()
	tr.OnAgentStoppedSpeaking()
	select {
	case rec := <-store.records:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
		return types.TurnMetric{}
	}
}

func newTestPair() (*turn.Tracker, *Router, *trackerStore) {
	store := &trackerStore{records: make(chan types.TurnMetric, 1)}
	tr := turn.NewTracker(store, zerolog.Nop())
	tr.SetCallInfo("call-1", "")
	return tr, NewRouter(tr, zerolog.Nop()), store
}

func startTurn(tr *turn.Tracker) {
	tr.OnUserStartedSpeaking()
	tr.OnUserStoppedSpeaking()
	tr.OnSTTComplete("hi")
}

func TestAudioDurationIsSpeechMetadataNotLatency(t *testing.T) {
	tr, r, store := newTestPair()
	// No speech-boundary callbacks fire, so routed values fill the gaps.
	tr.OnUserStartedSpeaking()
	tr.OnSTTComplete("hi")

	// 2.4s of user audio; 0.31s of STT processing
	r.RouteSTT(types.STTMetrics{AudioDuration: 2.4, Duration: 0.31})

	rec := flushTurn(t, tr, store)
	if rec.UserSpeechMs == nil || *rec.UserSpeechMs != 2400.0 {
		t.Errorf("expected audio duration as user speech 2400.0, got %v", rec.UserSpeechMs)
	}
	if rec.STTMs == nil || *rec.STTMs != 310.0 {
		t.Errorf("expected stt latency 310.0, got %v", rec.STTMs)
	}
	// TTFB is derived purely from speech-boundary timestamps and must not
	// absorb the 2.4s the user spent talking
	if rec.TTFBMs != nil && *rec.TTFBMs >= 2400.0 {
		t.Errorf("ttfb %v must exclude user speech duration", *rec.TTFBMs)
	}
}

func TestSecondsConvertToMilliseconds(t *testing.T) {
	tr, r, store := newTestPair()
	startTurn(tr)

	r.RouteLLM(types.LLMMetrics{TTFT: 0.12, Duration: 0.47, PromptTokens: 321, CompletionTokens: 18})
	r.RouteTTS(types.TTSMetrics{TTFB: 0.083})

	rec := flushTurn(t, tr, store)
	// LLMTotalMs comes from the OnLLMComplete timestamps in flushTurn, but
	// TTFT and TTS TTFB have no direct counterpart and use routed values
	if rec.LLMTTFBMs == nil || *rec.LLMTTFBMs != 120.0 {
		t.Errorf("expected llm ttfb 120.0 ms, got %v", rec.LLMTTFBMs)
	}
	if rec.TTSTTFBMs == nil || *rec.TTSTTFBMs != 83.0 {
		t.Errorf("expected tts ttfb 83.0 ms, got %v", rec.TTSTTFBMs)
	}
	if rec.TokensIn == nil || *rec.TokensIn != 321 {
		t.Errorf("expected tokens_in 321, got %v", rec.TokensIn)
	}
	if rec.TokensOut == nil || *rec.TokensOut != 18 {
		t.Errorf("expected tokens_out 18, got %v", rec.TokensOut)
	}
}

func TestRouteDispatchesByKind(t *testing.T) {
	tr, r, store := newTestPair()
	startTurn(tr)

	r.Route(types.KindLLM, []byte(`{"ttft":0.2,"prompt_tokens":50,"completion_tokens":9}`))
	r.Route(types.KindTTS, []byte(`{"ttfb":0.05}`))
	r.Route(types.MetricKind("telepathy"), []byte(`{}`)) // unknown, dropped

	rec := flushTurn(t, tr, store)
	if rec.LLMTTFBMs == nil || *rec.LLMTTFBMs != 200.0 {
		t.Errorf("expected llm ttfb 200.0, got %v", rec.LLMTTFBMs)
	}
	if rec.TTSTTFBMs == nil || *rec.TTSTTFBMs != 50.0 {
		t.Errorf("expected tts ttfb 50.0, got %v", rec.TTSTTFBMs)
	}
	if rec.TokensIn == nil || *rec.TokensIn != 50 {
		t.Errorf("expected tokens_in 50, got %v", rec.TokensIn)
	}
}

func TestRouteMalformedPayloadIsDropped(t *testing.T) {
	tr, r, store := newTestPair()
	startTurn(tr)

	r.Route(types.KindLLM, []byte(`{not json`))

	rec := flushTurn(t, tr, store)
	if rec.LLMTTFBMs != nil {
		t.Errorf("expected no llm ttfb from malformed payload, got %v", rec.LLMTTFBMs)
	}
}

func TestWallClockHintFlowsThrough(t *testing.T) {
	tr, r, store := newTestPair()
	startTurn(tr)

	ts := 1748779242.5
	r.RouteLLM(types.LLMMetrics{TTFT: 0.1, Timestamp: ts})

	rec := flushTurn(t, tr, store)
	want := types.EventTime(ts).UTC().Format(time.RFC3339Nano)
	if rec.EventTimestamp != want {
		t.Errorf("expected event timestamp %s, got %s", want, rec.EventTimestamp)
	}
}

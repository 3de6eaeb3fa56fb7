package turn

import (
	"math"
	"sync"
	"time"

	"github.com/ordervoice/voicemetrics/internal/metrics"
	"github.com/ordervoice/voicemetrics/internal/storage"
	"github.com/ordervoice/voicemetrics/internal/types"
	"github.com/rs/zerolog"
)

// historySize bounds the retained TTFB samples for rolling summaries
const historySize = 100

// summaryEvery controls how often a rolling min/avg/max summary is logged
const summaryEvery = 5

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithAgentVersion tags persisted records with the running agent version.
func WithAgentVersion(v string) Option {
	return func(t *Tracker) { t.agentVersion = v }
}

// Tracker correlates pipeline stage callbacks and routed metric events into
// one timing record per conversational turn and persists the record when
// the turn completes. One Tracker serves exactly one conversation; a
// process hosts one per active session with no shared turn state.
//
// Stage callbacks arrive in pipeline order within a session, but routed
// metric events may be delivered on other goroutines, so all mutation goes
// through the tracker's own mutex.
type Tracker struct {
	mu sync.Mutex

	store  storage.Store
	logger zerolog.Logger
	now    func() time.Time

	callID       string
	region       string
	agentVersion string
	model        types.ModelConfig

	phase phase
	cur   state

	turnCount   int
	ttfbHistory []float64

	onFlush func(types.TurnMetric)
}

// NewTracker creates a tracker bound to a store. The store is only ever
// written asynchronously; its failures are logged, never raised.
func NewTracker(store storage.Store, logger zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		store:        store,
		logger:       logger,
		now:          time.Now,
		model:        types.DefaultModelConfig(),
		agentVersion: "1.0.0",
		ttfbHistory:  make([]float64, 0, historySize),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetCallInfo sets call identification, expected before any turn events.
func (t *Tracker) SetCallInfo(callID, region string) {
	t.mu.Lock()
	t.callID = callID
	t.region = region
	t.mu.Unlock()
}

// SetModelConfig records which providers and models back the pipeline.
func (t *Tracker) SetModelConfig(mc types.ModelConfig) {
	t.mu.Lock()
	t.model = mc
	t.mu.Unlock()
}

// OnFlush registers a listener invoked with every persisted turn record.
// The listener runs on the flushing goroutine and must not block.
func (t *Tracker) OnFlush(fn func(types.TurnMetric)) {
	t.mu.Lock()
	t.onFlush = fn
	t.mu.Unlock()
}

// OnUserStartedSpeaking begins a new turn. If a previous turn is still in
// flight (barge-in or a missed agent-stopped signal), it is discarded
// without persistence; no partial metrics are written for superseded turns.
func (t *Tracker) OnUserStartedSpeaking() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.cur.turnStart.IsZero() {
		t.logger.Debug().
			Str("call_id", t.callID).
			Str("phase", t.phase.String()).
			Msg("new turn started before previous flush, discarding partial turn")
		metrics.Get().RecordTurnDiscarded()
		t.reset()
	}

	now := t.now()
	t.cur.turnStart = now
	t.cur.userSpeechStart = now
	t.phase = phaseSpeaking
	metrics.Get().RecordTurnStarted()
	t.logger.Debug().Str("call_id", t.callID).Msg("user started speaking")
}

// OnUserStoppedSpeaking marks the end of user speech; STT begins here.
func (t *Tracker) OnUserStoppedSpeaking() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != phaseSpeaking {
		return
	}
	now := t.now()
	t.cur.userSpeechEnd = now
	t.cur.sttStart = now
	t.phase = phaseSTT

	if !t.cur.userSpeechStart.IsZero() {
		t.logger.Debug().
			Str("call_id", t.callID).
			Float64("user_speech_ms", msBetween(t.cur.userSpeechStart, now)).
			Msg("user stopped speaking")
	}
}

// OnSTTComplete stores the transcript; LLM generation begins here.
func (t *Tracker) OnSTTComplete(transcript string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cur.turnStart.IsZero() {
		return
	}
	now := t.now()
	t.cur.sttEnd = now
	t.cur.llmStart = now
	t.cur.transcript = transcript
	t.phase = phaseLLM

	if !t.cur.sttStart.IsZero() {
		t.logger.Info().
			Str("call_id", t.callID).
			Float64("stt_ms", msBetween(t.cur.sttStart, now)).
			Str("transcript", preview(transcript)).
			Msg("stt complete")
	}
}

// OnLLMFirstToken marks generation start; only the first call counts.
func (t *Tracker) OnLLMFirstToken() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cur.turnStart.IsZero() || !t.cur.llmFirstToken.IsZero() {
		return
	}
	now := t.now()
	t.cur.llmFirstToken = now
	if !t.cur.llmStart.IsZero() {
		t.logger.Info().
			Str("call_id", t.callID).
			Float64("llm_ttfb_ms", msBetween(t.cur.llmStart, now)).
			Msg("llm first token")
	}
}

// OnLLMComplete stores the response and token counts; TTS begins here.
func (t *Tracker) OnLLMComplete(response string, tokensIn, tokensOut int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cur.turnStart.IsZero() {
		return
	}
	now := t.now()
	t.cur.llmEnd = now
	t.cur.ttsStart = now
	t.cur.response = response
	// Callers that lack token usage pass zero; keep any counts a routed
	// provider event already supplied.
	if tokensIn > 0 {
		t.cur.tokensIn = tokensIn
	}
	if tokensOut > 0 {
		t.cur.tokensOut = tokensOut
	}
	t.phase = phaseTTS

	if !t.cur.llmStart.IsZero() {
		t.logger.Info().
			Str("call_id", t.callID).
			Float64("llm_total_ms", msBetween(t.cur.llmStart, now)).
			Int("tokens_out", tokensOut).
			Msg("llm complete")
	}
}

// OnTTSFirstByte marks the first synthesized audio byte; idempotent.
func (t *Tracker) OnTTSFirstByte() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cur.turnStart.IsZero() || !t.cur.ttsFirstByte.IsZero() {
		return
	}
	now := t.now()
	t.cur.ttsFirstByte = now
	if !t.cur.ttsStart.IsZero() {
		t.logger.Info().
			Str("call_id", t.callID).
			Float64("tts_ttfb_ms", msBetween(t.cur.ttsStart, now)).
			Msg("tts first byte")
	}
}

// OnAgentStartedSpeaking marks playback start. The end-to-end latency
// signal is emitted here rather than when agent speech finishes.
func (t *Tracker) OnAgentStartedSpeaking() {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Unprompted agent speech (a greeting) opens no turn
	if t.cur.turnStart.IsZero() {
		return
	}
	now := t.now()
	t.cur.agentSpeechStart = now
	t.phase = phaseAgentSpeaking

	t.logger.Info().
		Str("call_id", t.callID).
		Float64("end_to_end_ms", msBetween(t.cur.turnStart, now)).
		Msg("agent started speaking")
}

// OnAgentStoppedSpeaking completes the turn: derived metrics are computed,
// the record is handed to the store without blocking, and the tracker
// resets for the next turn.
func (t *Tracker) OnAgentStoppedSpeaking() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cur.agentSpeechEnd = t.now()
	t.flushLocked()
}

// IngestRoutedMetric merges a normalized metric event into the in-flight
// turn. Duration fields are first-writer-wins against the direct
// callbacks; token counts always take the latest routed value.
func (t *Tracker) IngestRoutedMetric(rm RoutedMetric) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rm.UserSpeechMs != nil && t.cur.routedUserSpeechMs == nil {
		t.cur.routedUserSpeechMs = rm.UserSpeechMs
	}
	if rm.STTMs != nil && t.cur.routedSTTMs == nil {
		t.cur.routedSTTMs = rm.STTMs
	}
	if rm.LLMTTFBMs != nil && t.cur.routedLLMTTFBMs == nil {
		t.cur.routedLLMTTFBMs = rm.LLMTTFBMs
	}
	if rm.LLMTotalMs != nil && t.cur.routedLLMTotalMs == nil {
		t.cur.routedLLMTotalMs = rm.LLMTotalMs
	}
	if rm.TTSTTFBMs != nil && t.cur.routedTTSTTFBMs == nil {
		t.cur.routedTTSTTFBMs = rm.TTSTTFBMs
	}
	if rm.TokensIn != nil {
		t.cur.tokensIn = *rm.TokensIn
	}
	if rm.TokensOut != nil {
		t.cur.tokensOut = *rm.TokensOut
	}
	if !rm.EventTime.IsZero() {
		t.cur.wallClockHint = rm.EventTime
	}
}

// TurnCount returns the number of flushed turns.
func (t *Tracker) TurnCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.turnCount
}

// Summary returns rolling min/avg/max TTFB over the retained history.
func (t *Tracker) Summary() types.LatencySummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return summarize(t.ttfbHistory)
}

// flushLocked derives metrics and dispatches persistence. A turn with no
// turnStart (the user never spoke) is silently dropped. Caller holds mu.
func (t *Tracker) flushLocked() {
	if t.cur.turnStart.IsZero() {
		t.logger.Debug().Str("call_id", t.callID).Msg("no turn data to flush")
		t.reset()
		return
	}

	t.turnCount++
	rec := t.buildRecord()

	t.logger.Info().
		Str("call_id", t.callID).
		Int("turn", rec.TurnNumber).
		Interface("ttfb_ms", rec.TTFBMs).
		Interface("end_to_end_ms", rec.EndToEndMs).
		Interface("stt_ms", rec.STTMs).
		Interface("llm_ttfb_ms", rec.LLMTTFBMs).
		Interface("llm_total_ms", rec.LLMTotalMs).
		Interface("tts_ttfb_ms", rec.TTSTTFBMs).
		Msg("turn latency metrics")

	// Rolling history is updated before persistence is even attempted so a
	// failing store never hides in-memory statistics.
	if rec.TTFBMs != nil {
		if len(t.ttfbHistory) >= historySize {
			t.ttfbHistory = t.ttfbHistory[1:]
		}
		t.ttfbHistory = append(t.ttfbHistory, *rec.TTFBMs)
	}

	if t.turnCount%summaryEvery == 0 {
		s := summarize(t.ttfbHistory)
		t.logger.Info().
			Str("call_id", t.callID).
			Int("turns", s.Turns).
			Float64("min_ttfb_ms", s.MinTTFBMs).
			Float64("avg_ttfb_ms", s.AvgTTFBMs).
			Float64("max_ttfb_ms", s.MaxTTFBMs).
			Msg("rolling ttfb summary")
	}

	metrics.Get().RecordTurnFlushed()

	if t.onFlush != nil {
		t.onFlush(rec)
	}

	// Fire-and-forget relative to the pipeline
	go t.persist(rec)

	t.reset()
}

// buildRecord flattens the in-flight state into a persistable record.
// A derived metric is set only when both of its endpoints were observed;
// routed event durations fill the gaps. Caller holds mu.
func (t *Tracker) buildRecord() types.TurnMetric {
	rec := types.TurnMetric{
		CallID:       t.callID,
		TurnNumber:   t.turnCount,
		STTProvider:  t.model.STTProvider,
		STTModel:     t.model.STTModel,
		LLMProvider:  t.model.LLMProvider,
		LLMModel:     t.model.LLMModel,
		TTSProvider:  t.model.TTSProvider,
		TTSModel:     t.model.TTSModel,
		Region:       t.region,
		AgentVersion: t.agentVersion,
	}

	rec.TTFBMs = pairMs(t.cur.userSpeechEnd, t.cur.agentSpeechStart)
	rec.EndToEndMs = pairMs(t.cur.turnStart, t.cur.agentSpeechStart)
	rec.STTMs = firstOf(pairMs(t.cur.sttStart, t.cur.sttEnd), t.cur.routedSTTMs)
	rec.LLMTTFBMs = firstOf(pairMs(t.cur.llmStart, t.cur.llmFirstToken), t.cur.routedLLMTTFBMs)
	rec.LLMTotalMs = firstOf(pairMs(t.cur.llmStart, t.cur.llmEnd), t.cur.routedLLMTotalMs)
	rec.TTSTTFBMs = firstOf(pairMs(t.cur.ttsStart, t.cur.ttsFirstByte), t.cur.routedTTSTTFBMs)
	rec.UserSpeechMs = firstOf(pairMs(t.cur.userSpeechStart, t.cur.userSpeechEnd), t.cur.routedUserSpeechMs)
	rec.AgentSpeechMs = pairMs(t.cur.agentSpeechStart, t.cur.agentSpeechEnd)

	if t.cur.tokensIn > 0 {
		rec.TokensIn = intPtr(t.cur.tokensIn)
	}
	if t.cur.tokensOut > 0 {
		rec.TokensOut = intPtr(t.cur.tokensOut)
	}
	if t.cur.transcript != "" {
		rec.TranscriptLength = intPtr(len(t.cur.transcript))
	}
	if t.cur.response != "" {
		rec.ResponseLength = intPtr(len(t.cur.response))
	}
	if !t.cur.wallClockHint.IsZero() {
		rec.EventTimestamp = t.cur.wallClockHint.UTC().Format(time.RFC3339Nano)
	}

	return rec
}

// persist writes one record. Runs on its own goroutine; outcome is logged
// and counted, never raised into the pipeline.
func (t *Tracker) persist(rec types.TurnMetric) {
	if err := t.store.SaveTurnMetric(rec); err != nil {
		metrics.Get().RecordPersistFailure()
		t.logger.Error().Err(err).
			Str("call_id", rec.CallID).
			Int("turn", rec.TurnNumber).
			Msg("failed to persist turn metric")
		return
	}
	metrics.Get().RecordPersistSuccess()
	t.logger.Debug().
		Str("call_id", rec.CallID).
		Int("turn", rec.TurnNumber).
		Msg("turn metric persisted")
}

// reset clears per-turn state. Caller holds mu.
func (t *Tracker) reset() {
	t.cur = state{}
	t.phase = phaseIdle
}

func summarize(history []float64) types.LatencySummary {
	s := types.LatencySummary{Turns: len(history)}
	if len(history) == 0 {
		return s
	}
	s.MinTTFBMs = history[0]
	s.MaxTTFBMs = history[0]
	var sum float64
	for _, v := range history {
		if v < s.MinTTFBMs {
			s.MinTTFBMs = v
		}
		if v > s.MaxTTFBMs {
			s.MaxTTFBMs = v
		}
		sum += v
	}
	s.AvgTTFBMs = round1(sum / float64(len(history)))
	return s
}

// pairMs returns the rounded duration between two observed timestamps, or
// nil when either endpoint is missing.
func pairMs(start, end time.Time) *float64 {
	if start.IsZero() || end.IsZero() {
		return nil
	}
	ms := round1(msBetween(start, end))
	return &ms
}

func firstOf(direct, routed *float64) *float64 {
	if direct != nil {
		return direct
	}
	return routed
}

func msBetween(start, end time.Time) float64 {
	return float64(end.Sub(start)) / float64(time.Millisecond)
}

func round1(ms float64) float64 {
	return math.Round(ms*10) / 10
}

func intPtr(v int) *int { return &v }

func preview(s string) string {
	if len(s) > 50 {
		return s[:50] + "..."
	}
	return s
}

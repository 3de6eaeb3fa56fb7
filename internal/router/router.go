package router

import (
	"encoding/json"

	"github.com/ordervoice/voicemetrics/internal/metrics"
	"github.com/ordervoice/voicemetrics/internal/turn"
	"github.com/ordervoice/voicemetrics/internal/types"
	"github.com/rs/zerolog"
)

// secondsToMs converts the pipeline's native seconds to the tracker's
// millisecond convention.
func secondsToMs(s float64) float64 { return s * 1000 }

// Router classifies typed pipeline metric events, extracts the fields that
// matter for turn correlation, and forwards them to the tracker in
// normalized form. One Router serves one conversation, alongside its
// tracker.
type Router struct {
	tracker *turn.Tracker
	logger  zerolog.Logger
}

// NewRouter creates a router that feeds the given tracker.
func NewRouter(tracker *turn.Tracker, logger zerolog.Logger) *Router {
	return &Router{tracker: tracker, logger: logger}
}

// Route classifies a raw metric payload by its declared kind and
// dispatches it. The switch is exhaustive over the closed kind set;
// anything else falls through to Unknown.
func (r *Router) Route(kind types.MetricKind, payload []byte) {
	metrics.Get().RecordEventReceived()

	decode := func(v interface{}) bool {
		if err := json.Unmarshal(payload, v); err != nil {
			metrics.Get().RecordEventDecodeError()
			r.logger.Warn().Err(err).Str("kind", string(kind)).Msg("failed to decode metric payload")
			return false
		}
		return true
	}

	switch kind {
	case types.KindSTT:
		var m types.STTMetrics
		if decode(&m) {
			r.RouteSTT(m)
		}
	case types.KindLLM:
		var m types.LLMMetrics
		if decode(&m) {
			r.RouteLLM(m)
		}
	case types.KindTTS:
		var m types.TTSMetrics
		if decode(&m) {
			r.RouteTTS(m)
		}
	case types.KindVAD:
		var m types.VADMetrics
		if decode(&m) {
			r.RouteVAD(m)
		}
	case types.KindEOU:
		var m types.EOUMetrics
		if decode(&m) {
			r.RouteEOU(m)
		}
	default:
		r.Unknown(string(kind))
	}
}

// RouteSTT handles a speech-to-text metric event. AudioDuration is how
// long the user spoke; it is forwarded as speech-duration metadata and is
// never treated as processing latency.
func (r *Router) RouteSTT(m types.STTMetrics) {
	rm := turn.RoutedMetric{Kind: types.KindSTT, EventTime: types.EventTime(m.Timestamp)}
	if m.AudioDuration > 0 {
		ms := secondsToMs(m.AudioDuration)
		rm.UserSpeechMs = &ms
	}
	if m.Duration > 0 {
		ms := secondsToMs(m.Duration)
		rm.STTMs = &ms
	}
	r.tracker.IngestRoutedMetric(rm)
	metrics.Get().RecordEventRouted()
	r.logger.Debug().
		Float64("audio_duration_s", m.AudioDuration).
		Float64("duration_s", m.Duration).
		Msg("routed stt metrics")
}

// RouteLLM handles a language-model metric event.
func (r *Router) RouteLLM(m types.LLMMetrics) {
	rm := turn.RoutedMetric{Kind: types.KindLLM, EventTime: types.EventTime(m.Timestamp)}
	if m.TTFT > 0 {
		ms := secondsToMs(m.TTFT)
		rm.LLMTTFBMs = &ms
	}
	if m.Duration > 0 {
		ms := secondsToMs(m.Duration)
		rm.LLMTotalMs = &ms
	}
	if m.PromptTokens > 0 {
		v := m.PromptTokens
		rm.TokensIn = &v
	}
	if m.CompletionTokens > 0 {
		v := m.CompletionTokens
		rm.TokensOut = &v
	}
	r.tracker.IngestRoutedMetric(rm)
	metrics.Get().RecordEventRouted()
	r.logger.Debug().
		Float64("ttft_s", m.TTFT).
		Int("prompt_tokens", m.PromptTokens).
		Int("completion_tokens", m.CompletionTokens).
		Msg("routed llm metrics")
}

// RouteTTS handles a text-to-speech metric event.
func (r *Router) RouteTTS(m types.TTSMetrics) {
	rm := turn.RoutedMetric{Kind: types.KindTTS, EventTime: types.EventTime(m.Timestamp)}
	if m.TTFB > 0 {
		ms := secondsToMs(m.TTFB)
		rm.TTSTTFBMs = &ms
	}
	r.tracker.IngestRoutedMetric(rm)
	metrics.Get().RecordEventRouted()
	r.logger.Debug().Float64("ttfb_s", m.TTFB).Msg("routed tts metrics")
}

// RouteVAD handles a voice-activity metric event. These carry no turn
// timings; only the wall-clock hint is kept.
func (r *Router) RouteVAD(m types.VADMetrics) {
	r.tracker.IngestRoutedMetric(turn.RoutedMetric{
		Kind:      types.KindVAD,
		EventTime: types.EventTime(m.Timestamp),
	})
	metrics.Get().RecordEventRouted()
}

// RouteEOU handles an end-of-utterance metric event. Like VAD, kept for
// its timestamp only.
func (r *Router) RouteEOU(m types.EOUMetrics) {
	r.tracker.IngestRoutedMetric(turn.RoutedMetric{
		Kind:      types.KindEOU,
		EventTime: types.EventTime(m.Timestamp),
	})
	metrics.Get().RecordEventRouted()
}

// Unknown records an event kind outside the closed set. Dropped without
// error so a framework upgrade can never break the pipeline.
func (r *Router) Unknown(kind string) {
	metrics.Get().RecordEventUnknown()
	r.logger.Debug().Str("kind", kind).Msg("unknown metric kind dropped")
}

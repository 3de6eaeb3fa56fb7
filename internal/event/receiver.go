package event

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ordervoice/voicemetrics/internal/metrics"
	"github.com/ordervoice/voicemetrics/internal/session"
	"github.com/ordervoice/voicemetrics/internal/types"
	"github.com/rs/zerolog"
)

// Pipeline event kinds. Stage events mirror the speech pipeline's
// callbacks; metric events carry provider-reported payloads routed by
// kind; lifecycle events open and close sessions.
const (
	KindSessionStarted = "session_started"
	KindSessionEnded   = "session_ended"

	KindUserStartedSpeaking  = "user_started_speaking"
	KindUserStoppedSpeaking  = "user_stopped_speaking"
	KindSTTComplete          = "stt_complete"
	KindLLMFirstToken        = "llm_first_token"
	KindLLMComplete          = "llm_complete"
	KindTTSFirstByte         = "tts_first_byte"
	KindAgentStartedSpeaking = "agent_started_speaking"
	KindAgentStoppedSpeaking = "agent_stopped_speaking"

	KindMetric = "metric"
)

// Envelope is the wire form of every pipeline event.
type Envelope struct {
	CallID  string          `json:"call_id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// sessionStartedPayload opens a call.
type sessionStartedPayload struct {
	CallerNumber string             `json:"caller_number,omitempty"`
	Region       string             `json:"region,omitempty"`
	Model        *types.ModelConfig `json:"model,omitempty"`
}

// sttCompletePayload carries the final transcript.
type sttCompletePayload struct {
	Transcript string `json:"transcript"`
}

// llmCompletePayload carries the generated response and token usage.
type llmCompletePayload struct {
	Response  string `json:"response"`
	TokensIn  int    `json:"tokens_in,omitempty"`
	TokensOut int    `json:"tokens_out,omitempty"`
}

// metricPayload wraps a provider metric event with its kind tag.
type metricPayload struct {
	Metric  types.MetricKind `json:"metric"`
	Payload json.RawMessage  `json:"payload"`
}

// Receiver ingests pipeline events over HTTP and dispatches them to the
// owning session's tracker and router.
type Receiver struct {
	manager        *session.Manager
	logger         zerolog.Logger
	defaultRegion  string
	eventsReceived int64
	mu             sync.RWMutex
	lastReceived   time.Time
}

// NewReceiver creates a receiver feeding the given session manager.
// defaultRegion fills in when a session_started payload omits one.
func NewReceiver(manager *session.Manager, defaultRegion string, logger zerolog.Logger) *Receiver {
	return &Receiver{
		manager:       manager,
		logger:        logger,
		defaultRegion: defaultRegion,
	}
}

// HandleEvent receives one pipeline event.
func (r *Receiver) HandleEvent(w http.ResponseWriter, req *http.Request) {
	var env Envelope
	if err := json.NewDecoder(req.Body).Decode(&env); err != nil {
		r.logger.Error().Err(err).Msg("failed to decode event envelope")
		metrics.Get().RecordEventDecodeError()
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}
	if env.CallID == "" || env.Kind == "" {
		http.Error(w, "call_id and kind are required", http.StatusBadRequest)
		return
	}

	if env.Kind == KindSessionStarted {
		r.handleSessionStarted(env)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	s, ok := r.manager.Get(env.CallID)
	if !ok {
		// Events for unknown calls are dropped, not errored: a restart
		// mid-call must not wedge the pipeline's event sender.
		r.logger.Debug().
			Str("call_id", env.CallID).
			Str("kind", env.Kind).
			Msg("event for unknown session dropped")
		w.WriteHeader(http.StatusAccepted)
		return
	}
	s.Touch(time.Now())

	switch env.Kind {
	case KindSessionEnded:
		r.manager.End(env.CallID)

	case KindUserStartedSpeaking:
		s.Tracker.OnUserStartedSpeaking()
	case KindUserStoppedSpeaking:
		s.Tracker.OnUserStoppedSpeaking()
	case KindSTTComplete:
		var p sttCompletePayload
		if r.decode(env, &p) {
			s.Tracker.OnSTTComplete(p.Transcript)
		}
	case KindLLMFirstToken:
		s.Tracker.OnLLMFirstToken()
	case KindLLMComplete:
		var p llmCompletePayload
		if r.decode(env, &p) {
			s.Tracker.OnLLMComplete(p.Response, p.TokensIn, p.TokensOut)
		}
	case KindTTSFirstByte:
		s.Tracker.OnTTSFirstByte()
	case KindAgentStartedSpeaking:
		s.Tracker.OnAgentStartedSpeaking()
	case KindAgentStoppedSpeaking:
		s.Tracker.OnAgentStoppedSpeaking()

	case KindMetric:
		var p metricPayload
		if r.decode(env, &p) {
			s.Router.Route(p.Metric, p.Payload)
		}

	default:
		metrics.Get().RecordEventUnknown()
		r.logger.Debug().
			Str("call_id", env.CallID).
			Str("kind", env.Kind).
			Msg("unknown event kind dropped")
	}

	count := atomic.AddInt64(&r.eventsReceived, 1)
	r.mu.Lock()
	r.lastReceived = time.Now()
	r.mu.Unlock()

	if count%1000 == 0 {
		r.logger.Info().
			Int64("total_received", count).
			Int("active_sessions", r.manager.ActiveCount()).
			Msg("events received")
	}

	w.WriteHeader(http.StatusAccepted)
}

func (r *Receiver) handleSessionStarted(env Envelope) {
	var p sessionStartedPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			r.logger.Warn().Err(err).Str("call_id", env.CallID).Msg("bad session_started payload, using defaults")
		}
	}
	region := p.Region
	if region == "" {
		region = r.defaultRegion
	}
	model := types.DefaultModelConfig()
	if p.Model != nil {
		model = *p.Model
	}
	r.manager.Start(env.CallID, p.CallerNumber, region, model)
}

func (r *Receiver) decode(env Envelope, v interface{}) bool {
	if err := json.Unmarshal(env.Payload, v); err != nil {
		metrics.Get().RecordEventDecodeError()
		r.logger.Warn().Err(err).
			Str("call_id", env.CallID).
			Str("kind", env.Kind).
			Msg("failed to decode event payload")
		return false
	}
	return true
}

// GetStats returns receiver statistics.
func (r *Receiver) GetStats(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	lastReceived := r.lastReceived
	r.mu.RUnlock()

	stats := map[string]interface{}{
		"events_received": atomic.LoadInt64(&r.eventsReceived),
		"last_received":   lastReceived,
		"active_sessions": r.manager.ActiveCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

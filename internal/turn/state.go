package turn

import (
	"time"

	"github.com/ordervoice/voicemetrics/internal/types"
)

// phase is the tracker's position in the pipeline state machine.
type phase int

const (
	phaseIdle phase = iota
	phaseSpeaking
	phaseSTT
	phaseLLM
	phaseTTS
	phaseAgentSpeaking
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseSpeaking:
		return "speaking"
	case phaseSTT:
		return "stt"
	case phaseLLM:
		return "llm"
	case phaseTTS:
		return "tts"
	case phaseAgentSpeaking:
		return "agent_speaking"
	default:
		return "unknown"
	}
}

// state holds the timestamps and accumulators of one in-flight turn. The
// zero value is a fresh turn; the tracker resets it on flush or discard.
type state struct {
	turnStart        time.Time
	userSpeechStart  time.Time
	userSpeechEnd    time.Time
	sttStart         time.Time
	sttEnd           time.Time
	llmStart         time.Time
	llmFirstToken    time.Time
	llmEnd           time.Time
	ttsStart         time.Time
	ttsFirstByte     time.Time
	agentSpeechStart time.Time
	agentSpeechEnd   time.Time

	transcript string
	response   string
	tokensIn   int
	tokensOut  int

	// Durations reported by routed metric events, used only when the
	// corresponding timestamp pair was never observed directly.
	routedUserSpeechMs *float64
	routedSTTMs        *float64
	routedLLMTTFBMs    *float64
	routedLLMTotalMs   *float64
	routedTTSTTFBMs    *float64

	// Most recent event-reported wall-clock time; timestamps the persisted
	// record more accurately than insertion time.
	wallClockHint time.Time
}

// RoutedMetric is a normalized metric event as produced by the router.
// Nil fields were not present on the source event.
type RoutedMetric struct {
	Kind types.MetricKind

	UserSpeechMs *float64
	STTMs        *float64
	LLMTTFBMs    *float64
	LLMTotalMs   *float64
	TTSTTFBMs    *float64
	TokensIn     *int
	TokensOut    *int

	EventTime time.Time
}

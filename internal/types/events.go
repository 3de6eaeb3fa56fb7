package types

import "time"

// MetricKind is the closed set of pipeline metric event kinds. The pipeline
// framework tags every metric payload with one of these; anything else is
// dropped by the router.
type MetricKind string

const (
	KindSTT MetricKind = "speech_to_text"
	KindLLM MetricKind = "language_model"
	KindTTS MetricKind = "text_to_speech"
	KindVAD MetricKind = "voice_activity"
	KindEOU MetricKind = "end_of_utterance"
)

// Provider-native metric payloads. All durations are reported in seconds
// and Timestamp is a Unix float, matching what the pipeline framework emits.

// STTMetrics describes one speech-to-text completion. AudioDuration is how
// long the user spoke, not processing latency.
type STTMetrics struct {
	AudioDuration float64 `json:"audio_duration"`
	Duration      float64 `json:"duration"`
	Streamed      bool    `json:"streamed,omitempty"`
	Timestamp     float64 `json:"timestamp"`
}

// LLMMetrics describes one language-model generation.
type LLMMetrics struct {
	TTFT             float64 `json:"ttft"`
	Duration         float64 `json:"duration"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TokensPerSecond  float64 `json:"tokens_per_second,omitempty"`
	Timestamp        float64 `json:"timestamp"`
}

// TTSMetrics describes one text-to-speech synthesis.
type TTSMetrics struct {
	TTFB          float64 `json:"ttfb"`
	Duration      float64 `json:"duration"`
	AudioDuration float64 `json:"audio_duration"`
	Timestamp     float64 `json:"timestamp"`
}

// VADMetrics describes a voice-activity-detection window.
type VADMetrics struct {
	IdleTime       float64 `json:"idle_time"`
	InferenceCount int     `json:"inference_count"`
	Timestamp      float64 `json:"timestamp"`
}

// EOUMetrics describes end-of-utterance detection.
type EOUMetrics struct {
	EndOfUtteranceDelay float64 `json:"end_of_utterance_delay"`
	TranscriptionDelay  float64 `json:"transcription_delay"`
	Timestamp           float64 `json:"timestamp"`
}

// EventTime converts a pipeline Unix-float timestamp to a time.Time. The
// zero value maps to the zero time so callers can test with IsZero.
func EventTime(unix float64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	sec := int64(unix)
	nsec := int64((unix - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

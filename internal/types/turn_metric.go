package types

// TurnMetric is the flattened per-turn latency record written to DynamoDB.
// Optional fields use pointers so that metrics with a missing endpoint are
// omitted from the item instead of being written as zero.
type TurnMetric struct {
	CallID     string `json:"callId" dynamodbav:"CallID"`         // partition key
	TurnNumber int    `json:"turnNumber" dynamodbav:"TurnNumber"` // sort key

	// Model attribution
	STTProvider string `json:"sttProvider" dynamodbav:"STTProvider"`
	STTModel    string `json:"sttModel" dynamodbav:"STTModel"`
	LLMProvider string `json:"llmProvider" dynamodbav:"LLMProvider"`
	LLMModel    string `json:"llmModel" dynamodbav:"LLMModel"`
	TTSProvider string `json:"ttsProvider" dynamodbav:"TTSProvider"`
	TTSModel    string `json:"ttsModel" dynamodbav:"TTSModel"`

	// Core latencies in milliseconds, rounded to one decimal.
	// TTFBMs is user-stop-speaking to agent-start-speaking; user speech
	// duration is conversational content, not system latency, and is kept
	// out of it.
	TTFBMs     *float64 `json:"ttfbMs,omitempty" dynamodbav:"TTFBMs,omitempty"`
	EndToEndMs *float64 `json:"endToEndMs,omitempty" dynamodbav:"EndToEndMs,omitempty"`

	// Component breakdown
	STTMs     *float64 `json:"sttMs,omitempty" dynamodbav:"STTMs,omitempty"`
	LLMTTFBMs *float64 `json:"llmTtfbMs,omitempty" dynamodbav:"LLMTTFBMs,omitempty"`
	LLMTotalMs *float64 `json:"llmTotalMs,omitempty" dynamodbav:"LLMTotalMs,omitempty"`
	TTSTTFBMs *float64 `json:"ttsTtfbMs,omitempty" dynamodbav:"TTSTTFBMs,omitempty"`

	// Speech durations (metadata, never part of TTFB)
	UserSpeechMs  *float64 `json:"userSpeechMs,omitempty" dynamodbav:"UserSpeechMs,omitempty"`
	AgentSpeechMs *float64 `json:"agentSpeechMs,omitempty" dynamodbav:"AgentSpeechMs,omitempty"`

	// Token and text volume
	TokensIn         *int `json:"tokensIn,omitempty" dynamodbav:"TokensIn,omitempty"`
	TokensOut        *int `json:"tokensOut,omitempty" dynamodbav:"TokensOut,omitempty"`
	TranscriptLength *int `json:"transcriptLength,omitempty" dynamodbav:"TranscriptLength,omitempty"`
	ResponseLength   *int `json:"responseLength,omitempty" dynamodbav:"ResponseLength,omitempty"`

	// Metadata
	Region       string `json:"region,omitempty" dynamodbav:"Region,omitempty"`
	AgentVersion string `json:"agentVersion,omitempty" dynamodbav:"AgentVersion,omitempty"`

	// EventTimestamp is the most recent pipeline-reported wall-clock time
	// (RFC3339), a more faithful time basis than the moment of insertion.
	EventTimestamp string `json:"eventTimestamp,omitempty" dynamodbav:"EventTimestamp,omitempty"`
}

// CallRecord is the per-call lifecycle row, one per conversation.
type CallRecord struct {
	DateKey         string `json:"dateKey" dynamodbav:"DateKey"` // YYYY-MM-DD (partition key)
	CallID          string `json:"callId" dynamodbav:"CallID"`   // sort key
	CallerNumber    string `json:"callerNumber,omitempty" dynamodbav:"CallerNumber,omitempty"`
	Region          string `json:"region,omitempty" dynamodbav:"Region,omitempty"`
	AgentVersion    string `json:"agentVersion,omitempty" dynamodbav:"AgentVersion,omitempty"`
	Status          string `json:"status" dynamodbav:"Status"` // in_progress | completed
	StartedAt       string `json:"startedAt" dynamodbav:"StartedAt"` // RFC3339
	EndedAt         string `json:"endedAt,omitempty" dynamodbav:"EndedAt,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty" dynamodbav:"DurationSeconds,omitempty"`
	Turns           int    `json:"turns,omitempty" dynamodbav:"Turns,omitempty"`
}

// MenuItem is one row of the reference data the prompt builder caches.
type MenuItem struct {
	Category string  `json:"category" dynamodbav:"Category"` // partition key
	Name     string  `json:"name" dynamodbav:"ItemName"`     // sort key
	Price    float64 `json:"price" dynamodbav:"Price"`
}

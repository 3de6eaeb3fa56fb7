package types

// ModelConfig is the immutable per-session record of which providers and
// models back each pipeline stage. It is attached to every persisted turn
// so latency numbers can be attributed to a specific stack.
type ModelConfig struct {
	STTProvider string `json:"stt_provider" dynamodbav:"STTProvider"`
	STTModel    string `json:"stt_model" dynamodbav:"STTModel"`
	LLMProvider string `json:"llm_provider" dynamodbav:"LLMProvider"`
	LLMModel    string `json:"llm_model" dynamodbav:"LLMModel"`
	TTSProvider string `json:"tts_provider" dynamodbav:"TTSProvider"`
	TTSModel    string `json:"tts_model" dynamodbav:"TTSModel"`
}

// DefaultModelConfig mirrors the stack the agent runs when a session never
// reports its own configuration.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		STTProvider: "deepgram",
		STTModel:    "nova-2",
		LLMProvider: "openai",
		LLMModel:    "gpt-4o-mini",
		TTSProvider: "cartesia",
		TTSModel:    "sonic-2",
	}
}

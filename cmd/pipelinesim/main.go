package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/ordervoice/voicemetrics/internal/event"
	"github.com/ordervoice/voicemetrics/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// latencyProfile bounds the synthetic stage delays for one call.
type latencyProfile struct {
	userSpeech  [2]time.Duration
	stt         [2]time.Duration
	llmFirst    [2]time.Duration
	llmRest     [2]time.Duration
	ttsFirst    [2]time.Duration
	agentSpeech [2]time.Duration
}

var normalProfile = latencyProfile{
	userSpeech:  [2]time.Duration{800 * time.Millisecond, 4 * time.Second},
	stt:         [2]time.Duration{80 * time.Millisecond, 300 * time.Millisecond},
	llmFirst:    [2]time.Duration{150 * time.Millisecond, 600 * time.Millisecond},
	llmRest:     [2]time.Duration{100 * time.Millisecond, 500 * time.Millisecond},
	ttsFirst:    [2]time.Duration{50 * time.Millisecond, 200 * time.Millisecond},
	agentSpeech: [2]time.Duration{1 * time.Second, 5 * time.Second},
}

// slowProfile simulates a degraded provider to trip the TTFB alerts.
var slowProfile = latencyProfile{
	userSpeech:  [2]time.Duration{800 * time.Millisecond, 4 * time.Second},
	stt:         [2]time.Duration{400 * time.Millisecond, 1200 * time.Millisecond},
	llmFirst:    [2]time.Duration{900 * time.Millisecond, 2500 * time.Millisecond},
	llmRest:     [2]time.Duration{300 * time.Millisecond, 900 * time.Millisecond},
	ttsFirst:    [2]time.Duration{200 * time.Millisecond, 600 * time.Millisecond},
	agentSpeech: [2]time.Duration{1 * time.Second, 5 * time.Second},
}

var transcripts = []string{
	"hi can I get a large margherita",
	"what gluten free options do you have",
	"add a bottle of sparkling water to that",
	"actually make that two pizzas",
	"that's everything thanks",
}

var responses = []string{
	"One large margherita, anything else?",
	"We have a gluten free base for any of our pizzas.",
	"Sparkling water added. Anything else?",
	"Two large margheritas, got it.",
	"Great, your order will be ready in twenty minutes.",
}

type simulator struct {
	serverURL string
	client    *http.Client
	logger    zerolog.Logger
	rng       *rand.Rand
	mu        sync.Mutex
}

func (s *simulator) between(bounds [2]time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bounds[0] + time.Duration(s.rng.Int63n(int64(bounds[1]-bounds[0])))
}

func (s *simulator) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *simulator) float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *simulator) send(ctx context.Context, callID, kind string, payload interface{}) error {
	env := event.Envelope{CallID: callID, Kind: kind}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		env.Payload = b
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/internal/pipeline/event", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d for %s", resp.StatusCode, kind)
	}
	return nil
}

// runCall drives one synthetic call through a handful of turns.
func (s *simulator) runCall(ctx context.Context, profile latencyProfile) {
	callID := uuid.New().String()
	logger := s.logger.With().Str("call_id", callID).Logger()

	caller := fmt.Sprintf("+6140000%04d", s.intn(10000))
	if err := s.send(ctx, callID, event.KindSessionStarted, map[string]interface{}{
		"caller_number": caller,
	}); err != nil {
		logger.Error().Err(err).Msg("failed to start session")
		return
	}
	defer s.send(context.Background(), callID, event.KindSessionEnded, nil)

	turns := 2 + s.intn(len(transcripts)-1)
	for i := 0; i < turns; i++ {
		if err := s.runTurn(ctx, callID, profile, i); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Int("turn", i+1).Msg("turn aborted")
			return
		}
	}
	logger.Info().Int("turns", turns).Msg("call finished")
}

func (s *simulator) runTurn(ctx context.Context, callID string, profile latencyProfile, i int) error {
	sleep := func(d time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}

	if err := s.send(ctx, callID, event.KindUserStartedSpeaking, nil); err != nil {
		return err
	}
	userSpeech := s.between(profile.userSpeech)
	if err := sleep(userSpeech); err != nil {
		return err
	}
	if err := s.send(ctx, callID, event.KindUserStoppedSpeaking, nil); err != nil {
		return err
	}

	sttDur := s.between(profile.stt)
	if err := sleep(sttDur); err != nil {
		return err
	}
	transcript := transcripts[i%len(transcripts)]
	if err := s.send(ctx, callID, event.KindSTTComplete, map[string]string{"transcript": transcript}); err != nil {
		return err
	}
	if err := s.send(ctx, callID, event.KindMetric, map[string]interface{}{
		"metric": string(types.KindSTT),
		"payload": types.STTMetrics{
			AudioDuration: userSpeech.Seconds(),
			Duration:      sttDur.Seconds(),
			Streamed:      true,
			Timestamp:     float64(time.Now().UnixNano()) / 1e9,
		},
	}); err != nil {
		return err
	}

	llmFirst := s.between(profile.llmFirst)
	if err := sleep(llmFirst); err != nil {
		return err
	}
	if err := s.send(ctx, callID, event.KindLLMFirstToken, nil); err != nil {
		return err
	}
	llmRest := s.between(profile.llmRest)
	if err := sleep(llmRest); err != nil {
		return err
	}
	tokensIn := 200 + s.intn(400)
	tokensOut := 10 + s.intn(60)
	response := responses[i%len(responses)]
	if err := s.send(ctx, callID, event.KindLLMComplete, map[string]interface{}{
		"response":   response,
		"tokens_in":  tokensIn,
		"tokens_out": tokensOut,
	}); err != nil {
		return err
	}
	if err := s.send(ctx, callID, event.KindMetric, map[string]interface{}{
		"metric": string(types.KindLLM),
		"payload": types.LLMMetrics{
			TTFT:             llmFirst.Seconds(),
			Duration:         (llmFirst + llmRest).Seconds(),
			PromptTokens:     tokensIn,
			CompletionTokens: tokensOut,
			Timestamp:        float64(time.Now().UnixNano()) / 1e9,
		},
	}); err != nil {
		return err
	}

	ttsFirst := s.between(profile.ttsFirst)
	if err := sleep(ttsFirst); err != nil {
		return err
	}
	if err := s.send(ctx, callID, event.KindTTSFirstByte, nil); err != nil {
		return err
	}
	if err := s.send(ctx, callID, event.KindMetric, map[string]interface{}{
		"metric": string(types.KindTTS),
		"payload": types.TTSMetrics{
			TTFB:      ttsFirst.Seconds(),
			Timestamp: float64(time.Now().UnixNano()) / 1e9,
		},
	}); err != nil {
		return err
	}
	if err := s.send(ctx, callID, event.KindAgentStartedSpeaking, nil); err != nil {
		return err
	}
	if err := sleep(s.between(profile.agentSpeech)); err != nil {
		return err
	}
	return s.send(ctx, callID, event.KindAgentStoppedSpeaking, nil)
}

func main() {
	// CLI flags
	var (
		serverURL   = flag.String("server-url", "http://localhost:8080", "Telemetry server URL")
		concurrency = flag.Int("calls", 5, "Number of concurrent synthetic calls")
		slowRatio   = flag.Float64("slow-ratio", 0.2, "Fraction of calls using the degraded latency profile")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	// Setup logger
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Str("service", "pipelinesim").
		Logger()

	logger.Info().
		Str("server_url", *serverURL).
		Int("calls", *concurrency).
		Msg("starting pipeline simulator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sim := &simulator{
		serverURL: *serverURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	var wg sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for ctx.Err() == nil {
				profile := normalProfile
				if sim.float64() < *slowRatio {
					profile = slowProfile
				}
				sim.runCall(ctx, profile)
			}
		}(i)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down pipeline simulator")
	cancel()
	wg.Wait()
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/ordervoice/voicemetrics/internal/aggregator"
	"github.com/ordervoice/voicemetrics/internal/alerts"
	"github.com/ordervoice/voicemetrics/internal/api"
	"github.com/ordervoice/voicemetrics/internal/config"
	"github.com/ordervoice/voicemetrics/internal/event"
	"github.com/ordervoice/voicemetrics/internal/menu"
	"github.com/ordervoice/voicemetrics/internal/metrics"
	"github.com/ordervoice/voicemetrics/internal/session"
	"github.com/ordervoice/voicemetrics/internal/storage"
	"github.com/ordervoice/voicemetrics/internal/websocket"
	"github.com/ordervoice/voicemetrics/pkg/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Str("region", cfg.Region).
		Msg("starting voicemetrics server")

	// Create context for services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create store (DynamoDB or noop depending on DYNAMO_MODE)
	store, err := storage.NewStore(ctx, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create store")
	}

	// Create WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run()

	// Create session manager and start the idle sweeper
	manager := session.NewManager(store, cfg.SessionIdleTimeout, log.Logger,
		session.WithAgentVersion(cfg.AgentVersion),
	)
	go manager.Run(ctx)

	// Create aggregator and wire it to turn flushes
	thresholds := alerts.Thresholds{WarnMs: cfg.TTFBWarnMs, CritMs: cfg.TTFBCritMs}
	aggregatorService := aggregator.NewAggregator(manager, hub, thresholds, log.Logger)
	manager.OnFlush(aggregatorService.RecordFlush)
	go aggregatorService.Start(ctx)

	// Create event receiver
	eventReceiver := event.NewReceiver(manager, cfg.Region, log.Logger)

	// Create menu provider
	menuProvider := menu.NewProvider(store, cfg.MenuTTL, log.Logger)

	// Create handlers
	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)
	historyHandler := api.NewCallHistoryHandler(store, log.Logger)
	summaryHandler := api.NewSummaryHandler(aggregatorService.Widget, log.Logger)
	menuHandler := api.NewMenuHandler(menuProvider, log.Logger)

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes
	r.Get("/health", healthHandler)
	r.Get("/metrics", metrics.Get().Handler())
	r.Get("/ws", wsHandler.ServeHTTP)

	// Internal routes for the speech pipeline
	r.Route("/internal/pipeline", func(r chi.Router) {
		r.Post("/event", eventReceiver.HandleEvent)
		r.Get("/event/stats", eventReceiver.GetStats)
	})

	// Read API for the dashboard
	r.Route("/api", func(r chi.Router) {
		r.Get("/calls", historyHandler.GetCalls)
		r.Get("/calls/{callId}/turns", historyHandler.GetTurns)
		r.Get("/summary", summaryHandler.GetSummary)
		r.Get("/menu", menuHandler.GetMenu)
		r.Post("/menu/invalidate", menuHandler.InvalidateMenu)
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop background services
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"voicemetrics"}`)
}

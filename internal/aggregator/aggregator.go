package aggregator

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"github.com/ordervoice/voicemetrics/internal/alerts"
	"github.com/ordervoice/voicemetrics/internal/metrics"
	"github.com/ordervoice/voicemetrics/internal/session"
	"github.com/ordervoice/voicemetrics/internal/types"
	"github.com/ordervoice/voicemetrics/internal/websocket"
	"github.com/rs/zerolog"
)

// Aggregator builds the fleet latency widget and broadcasts it
type Aggregator struct {
	manager      *session.Manager
	hub          *websocket.Hub
	thresholds   alerts.Thresholds
	logger       zerolog.Logger
	turnsFlushed int64
}

// NewAggregator creates a new aggregator
func NewAggregator(manager *session.Manager, hub *websocket.Hub, thresholds alerts.Thresholds, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		manager:    manager,
		hub:        hub,
		thresholds: thresholds,
		logger:     logger,
	}
}

// RecordFlush notes one flushed turn. Wire it as the session manager's
// flush callback.
func (a *Aggregator) RecordFlush(types.TurnMetric) {
	atomic.AddInt64(&a.turnsFlushed, 1)
}

// Start broadcasts one widget per second until ctx is cancelled
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	a.logger.Info().Msg("aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("aggregator stopped")
			return

		case <-ticker.C:
			cycleStart := time.Now()

			widget := a.buildWidget()
			if widget.ActiveCalls == 0 && widget.TurnsFlushed == 0 {
				continue
			}

			data, err := json.Marshal(widget)
			if err != nil {
				a.logger.Error().Err(err).Msg("failed to marshal widget")
				continue
			}
			a.hub.Broadcast(data)

			metrics.Get().RecordAggregationCycle(time.Since(cycleStart))

			a.logger.Debug().
				Int("active_calls", widget.ActiveCalls).
				Int("alerts", len(widget.Alerts)).
				Int("clients", a.hub.ClientCount()).
				Msg("widget broadcasted")
		}
	}
}

// Widget returns the current fleet latency view. The REST summary
// endpoint serves the same payload the websocket broadcasts.
func (a *Aggregator) Widget() *types.LatencyWidget {
	return a.buildWidget()
}

// buildWidget snapshots every live session's rolling latency view
func (a *Aggregator) buildWidget() *types.LatencyWidget {
	sessions := a.manager.Snapshot()

	calls := make([]types.CallLatency, 0, len(sessions))
	for _, s := range sessions {
		calls = append(calls, types.CallLatency{
			CallID:  s.CallID,
			Region:  s.Region,
			Summary: s.Tracker.Summary(),
		})
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i].CallID < calls[j].CallID })

	widget := &types.LatencyWidget{
		Type:         "latency_overview",
		Timestamp:    time.Now().UTC(),
		ActiveCalls:  len(calls),
		TurnsFlushed: atomic.LoadInt64(&a.turnsFlushed),
		Global:       globalSummary(calls),
		Calls:        calls,
	}
	alerts.CheckLatencyAlerts(widget, a.thresholds)
	return widget
}

// globalSummary folds per-call summaries into one fleet view. The average
// is weighted by each call's turn count.
func globalSummary(calls []types.CallLatency) types.LatencySummary {
	var g types.LatencySummary
	g.MinTTFBMs = math.Inf(1)
	var weighted float64

	for _, c := range calls {
		s := c.Summary
		if s.Turns == 0 {
			continue
		}
		g.Turns += s.Turns
		weighted += s.AvgTTFBMs * float64(s.Turns)
		if s.MinTTFBMs < g.MinTTFBMs {
			g.MinTTFBMs = s.MinTTFBMs
		}
		if s.MaxTTFBMs > g.MaxTTFBMs {
			g.MaxTTFBMs = s.MaxTTFBMs
		}
	}

	if g.Turns == 0 {
		return types.LatencySummary{}
	}
	g.AvgTTFBMs = math.Round(weighted/float64(g.Turns)*10) / 10
	return g
}

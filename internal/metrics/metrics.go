package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Pipeline event metrics
	EventsReceivedTotal int64
	EventsRoutedTotal   int64
	EventsUnknownTotal  int64
	EventDecodeErrors   int64

	// Turn metrics
	TurnsStartedTotal   int64
	TurnsFlushedTotal   int64
	TurnsDiscardedTotal int64

	// Persistence metrics
	PersistSuccessTotal int64
	PersistFailureTotal int64

	// Cache metrics
	CacheHitsTotal        int64
	CacheMissesTotal      int64
	CacheStaleServesTotal int64

	// Session metrics
	SessionsStartedTotal int64
	SessionsEndedTotal   int64
	SessionsSweptTotal   int64
	activeSessions       int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	activeConnections            int64

	// Aggregation metrics
	AggregationCyclesTotal  int64
	lastAggregationDuration time.Duration

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			startTime: time.Now(),
		}
	})
	return instance
}

// RecordEventReceived increments the events received counter
func (m *Metrics) RecordEventReceived() {
	m.mu.Lock()
	m.EventsReceivedTotal++
	m.mu.Unlock()
}

// RecordEventRouted increments the routed event counter
func (m *Metrics) RecordEventRouted() {
	m.mu.Lock()
	m.EventsRoutedTotal++
	m.mu.Unlock()
}

// RecordEventUnknown increments the unknown-kind counter
func (m *Metrics) RecordEventUnknown() {
	m.mu.Lock()
	m.EventsUnknownTotal++
	m.mu.Unlock()
}

// RecordEventDecodeError increments the decode error counter
func (m *Metrics) RecordEventDecodeError() {
	m.mu.Lock()
	m.EventDecodeErrors++
	m.mu.Unlock()
}

// RecordTurnStarted increments the turns started counter
func (m *Metrics) RecordTurnStarted() {
	m.mu.Lock()
	m.TurnsStartedTotal++
	m.mu.Unlock()
}

// RecordTurnFlushed increments the turns flushed counter
func (m *Metrics) RecordTurnFlushed() {
	m.mu.Lock()
	m.TurnsFlushedTotal++
	m.mu.Unlock()
}

// RecordTurnDiscarded increments the turns discarded counter
func (m *Metrics) RecordTurnDiscarded() {
	m.mu.Lock()
	m.TurnsDiscardedTotal++
	m.mu.Unlock()
}

// RecordPersistSuccess increments the persistence success counter
func (m *Metrics) RecordPersistSuccess() {
	m.mu.Lock()
	m.PersistSuccessTotal++
	m.mu.Unlock()
}

// RecordPersistFailure increments the persistence failure counter
func (m *Metrics) RecordPersistFailure() {
	m.mu.Lock()
	m.PersistFailureTotal++
	m.mu.Unlock()
}

// RecordCacheHit increments the cache hit counter
func (m *Metrics) RecordCacheHit() {
	m.mu.Lock()
	m.CacheHitsTotal++
	m.mu.Unlock()
}

// RecordCacheMiss increments the cache miss counter
func (m *Metrics) RecordCacheMiss() {
	m.mu.Lock()
	m.CacheMissesTotal++
	m.mu.Unlock()
}

// RecordCacheStaleServe increments the stale-serve counter
func (m *Metrics) RecordCacheStaleServe() {
	m.mu.Lock()
	m.CacheStaleServesTotal++
	m.mu.Unlock()
}

// RecordSessionStarted increments session counters
func (m *Metrics) RecordSessionStarted() {
	m.mu.Lock()
	m.SessionsStartedTotal++
	m.activeSessions++
	m.mu.Unlock()
}

// RecordSessionEnded decrements the active session gauge
func (m *Metrics) RecordSessionEnded() {
	m.mu.Lock()
	m.SessionsEndedTotal++
	m.activeSessions--
	m.mu.Unlock()
}

// RecordSessionsSwept adds to the swept session counter. The active gauge
// is left alone: each swept session is closed through RecordSessionEnded,
// which already decrements it.
func (m *Metrics) RecordSessionsSwept(n int) {
	m.mu.Lock()
	m.SessionsSweptTotal += int64(n)
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordAggregationCycle records an aggregation cycle
func (m *Metrics) RecordAggregationCycle(duration time.Duration) {
	m.mu.Lock()
	m.AggregationCyclesTotal++
	m.lastAggregationDuration = duration
	m.mu.Unlock()
}

// GetActiveSessions returns the current session gauge
func (m *Metrics) GetActiveSessions() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeSessions
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}) {
			switch v := value.(type) {
			case int64:
				w.Write([]byte(name + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("voicemetrics_uptime_seconds", time.Since(m.startTime).Seconds())

		// Pipeline event metrics
		write("voicemetrics_events_received_total", m.EventsReceivedTotal)
		write("voicemetrics_events_routed_total", m.EventsRoutedTotal)
		write("voicemetrics_events_unknown_total", m.EventsUnknownTotal)
		write("voicemetrics_event_decode_errors_total", m.EventDecodeErrors)

		// Turn metrics
		write("voicemetrics_turns_started_total", m.TurnsStartedTotal)
		write("voicemetrics_turns_flushed_total", m.TurnsFlushedTotal)
		write("voicemetrics_turns_discarded_total", m.TurnsDiscardedTotal)

		// Persistence metrics
		write("voicemetrics_persist_success_total", m.PersistSuccessTotal)
		write("voicemetrics_persist_failure_total", m.PersistFailureTotal)

		// Cache metrics
		write("voicemetrics_cache_hits_total", m.CacheHitsTotal)
		write("voicemetrics_cache_misses_total", m.CacheMissesTotal)
		write("voicemetrics_cache_stale_serves_total", m.CacheStaleServesTotal)

		// Session metrics
		write("voicemetrics_sessions_started_total", m.SessionsStartedTotal)
		write("voicemetrics_sessions_ended_total", m.SessionsEndedTotal)
		write("voicemetrics_sessions_swept_total", m.SessionsSweptTotal)
		write("voicemetrics_sessions_active", m.activeSessions)

		// WebSocket metrics
		write("voicemetrics_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("voicemetrics_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("voicemetrics_websocket_active_connections", m.activeConnections)

		// Aggregation metrics
		write("voicemetrics_aggregation_cycles_total", m.AggregationCyclesTotal)
		write("voicemetrics_aggregation_duration_seconds", m.lastAggregationDuration.Seconds())
	}
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ordervoice/voicemetrics/internal/storage"
	"github.com/ordervoice/voicemetrics/internal/types"
	"github.com/rs/zerolog"
)

// CallHistoryHandler provides REST endpoints for persisted call data
type CallHistoryHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewCallHistoryHandler creates a new CallHistoryHandler
func NewCallHistoryHandler(store storage.Store, logger zerolog.Logger) *CallHistoryHandler {
	return &CallHistoryHandler{
		store:  store,
		logger: logger.With().Str("component", "call_history_handler").Logger(),
	}
}

// GetCalls returns call records for a specific date
// GET /api/calls?date=YYYY-MM-DD
func (h *CallHistoryHandler) GetCalls(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "date query parameter is required (YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	records, err := h.store.GetCallRecords(date)
	if err != nil {
		h.logger.Error().Err(err).Str("date", date).Msg("failed to get call records")
		http.Error(w, "failed to retrieve calls", http.StatusInternalServerError)
		return
	}

	if records == nil {
		records = []types.CallRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

// GetTurns returns every persisted turn metric for the given call
// GET /api/calls/{callId}/turns
func (h *CallHistoryHandler) GetTurns(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callId")
	if callID == "" {
		http.Error(w, "callId is required", http.StatusBadRequest)
		return
	}

	turns, err := h.store.GetTurnMetrics(callID)
	if err != nil {
		h.logger.Error().Err(err).Str("call_id", callID).Msg("failed to get turn metrics")
		http.Error(w, "failed to retrieve turns", http.StatusInternalServerError)
		return
	}

	if turns == nil {
		turns = []types.TurnMetric{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(turns)
}

// SummaryHandler serves the live fleet latency view over REST
type SummaryHandler struct {
	widget func() *types.LatencyWidget
	logger zerolog.Logger
}

// NewSummaryHandler creates a new SummaryHandler. widget is typically the
// aggregator's Widget method.
func NewSummaryHandler(widget func() *types.LatencyWidget, logger zerolog.Logger) *SummaryHandler {
	return &SummaryHandler{widget: widget, logger: logger}
}

// GetSummary returns the current fleet latency widget
// GET /api/summary
func (h *SummaryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.widget())
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ordervoice/voicemetrics/internal/menu"
	"github.com/rs/zerolog"
)

// MenuHandler exposes the cached menu used in agent prompts
type MenuHandler struct {
	provider *menu.Provider
	logger   zerolog.Logger
}

// NewMenuHandler creates a new MenuHandler
func NewMenuHandler(provider *menu.Provider, logger zerolog.Logger) *MenuHandler {
	return &MenuHandler{provider: provider, logger: logger}
}

// GetMenu returns the prompt-ready menu text
// GET /api/menu
func (h *MenuHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	text := h.provider.PromptText(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"menu": text})
}

// InvalidateMenu drops the cached menu so the next read fetches fresh data
// POST /api/menu/invalidate
func (h *MenuHandler) InvalidateMenu(w http.ResponseWriter, r *http.Request) {
	h.provider.Invalidate()
	h.logger.Info().Msg("menu cache invalidated")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "menu cache invalidated"})
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/polytrack/polytrack/internal/service"
)

// SignalHandler serves recent smart-money signals.
type SignalHandler struct {
	signals *service.SignalService
	logger  *slog.Logger
}

// NewSignalHandler creates a SignalHandler.
func NewSignalHandler(signals *service.SignalService, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{signals: signals, logger: logger}
}

// ListRecent returns signals from the trailing window, strongest first.
// GET /api/smart-money/signals?hours=24
func (h *SignalHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)

	signals, err := h.signals.GetRecentSignals(r.Context(), hours)
	if err != nil {
		h.logger.Error("list signals", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"signals": signals,
		"count":   len(signals),
		"hours":   hours,
	})
}

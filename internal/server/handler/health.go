package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	markets domain.MarketStore
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. markets may be nil when the
// process runs without a database.
func NewHealthHandler(markets domain.MarketStore, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{markets: markets, logger: logger}
}

// HealthCheck reports liveness plus the catalogue size. The market count
// doubles as a readiness hint: a zero catalogue means fills cannot resolve
// yet.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.markets != nil {
		if n, err := h.markets.Count(r.Context()); err != nil {
			h.logger.Warn("market count failed", slog.String("error", err.Error()))
		} else {
			body["markets"] = n
		}
	}
	writeJSON(w, http.StatusOK, body)
}

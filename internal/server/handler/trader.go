package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/service"
)

// TraderHandler serves the smart-money leaderboard and per-address detail.
type TraderHandler struct {
	traders *service.TraderService
	logger  *slog.Logger
}

// NewTraderHandler creates a TraderHandler.
func NewTraderHandler(traders *service.TraderService, logger *slog.Logger) *TraderHandler {
	return &TraderHandler{traders: traders, logger: logger}
}

// ListSmartMoney returns the scored leaderboard.
// GET /api/smart-money?limit=50&sort=score&view=all
func (h *TraderHandler) ListSmartMoney(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", service.DefaultLeaderboardLimit)
	sortField := r.URL.Query().Get("sort")
	view := domain.ViewFilter(r.URL.Query().Get("view"))

	switch view {
	case "", domain.ViewAll, domain.ViewRetail:
	default:
		writeError(w, http.StatusBadRequest, "view must be all or retail")
		return
	}

	traders, err := h.traders.GetSmartTraders(r.Context(), limit, sortField, view)
	if err != nil {
		if strings.Contains(err.Error(), "unknown sort field") {
			writeError(w, http.StatusBadRequest, "unknown sort field")
			return
		}
		h.logger.Error("list smart money", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list traders")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"traders": traders,
		"count":   len(traders),
	})
}

// GetTrader returns one address's aggregate, positions, and signals.
// GET /api/smart-money/{address}
func (h *TraderHandler) GetTrader(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	detail, err := h.traders.GetTraderDetail(r.Context(), address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "trader not found")
			return
		}
		h.logger.Error("get trader",
			slog.String("address", address),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load trader")
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

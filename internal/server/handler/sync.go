package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/service"
)

// SyncHandler triggers sync runs over HTTP, mirroring what the scheduler
// does on its interval.
type SyncHandler struct {
	sync   *service.SyncService
	logger *slog.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(sync *service.SyncService, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{sync: sync, logger: logger}
}

// TriggerSync runs one incremental sync cycle and returns its structured
// result. A run already in progress yields 409.
// POST /api/sync
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	res := h.sync.RunIncrementalSync(r.Context())

	status := http.StatusOK
	if !res.OK {
		status = http.StatusInternalServerError
		for _, msg := range res.Errors {
			if strings.Contains(msg, domain.ErrLockHeld.Error()) {
				status = http.StatusConflict
				break
			}
		}
		h.logger.Warn("triggered sync failed", slog.Any("errors", res.Errors))
	}

	writeJSON(w, status, res)
}

package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/audiforge/audiforge/internal/pipeline"
)

type StatusHandler struct {
	status *pipeline.StatusStore
	logger arbor.ILogger
}

func NewStatusHandler(status *pipeline.StatusStore, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		status: status,
		logger: logger,
	}
}

// GetStatusHandler returns the point-in-time status for a job. An
// untracked job ID yields the "unknown" placeholder, never an error:
// clients routinely poll before the first transition is recorded.
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request, bookID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	record := h.status.GetOrUnknown(bookID)
	WriteJSON(w, http.StatusOK, record)
}

// -----------------------------------------------------------------------
// Stream Handler - Server-Sent Events push of one job's status records
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/audiforge/audiforge/internal/models"
	"github.com/audiforge/audiforge/internal/pipeline"
)

// streamPingInterval keeps idle SSE connections alive through proxies.
const streamPingInterval = 15 * time.Second

type StreamHandler struct {
	status      *pipeline.StatusStore
	broadcaster *pipeline.Broadcaster
	logger      arbor.ILogger
}

func NewStreamHandler(status *pipeline.StatusStore, broadcaster *pipeline.Broadcaster, logger arbor.ILogger) *StreamHandler {
	return &StreamHandler{
		status:      status,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// StreamHandler pushes the job's status records as SSE events. The
// stream opens with the current record (the "unknown" placeholder when
// the job has not started yet), then forwards every transition until
// the broadcaster severs the subscription after the terminal record or
// the client disconnects. Disconnection deterministically unregisters
// the subscription.
func (h *StreamHandler) StreamHandler(w http.ResponseWriter, r *http.Request, bookID string) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Flush headers immediately to trigger browser's EventSource.onopen
	flusher.Flush()

	// Subscribe before the initial read so no transition can fall into
	// the gap between them.
	ch, unsubscribe := h.broadcaster.Subscribe(bookID)
	defer unsubscribe()

	h.logger.Debug().Str("book_id", bookID).Msg("SSE status stream opened")

	initial := h.status.GetOrUnknown(bookID)
	h.sendEvent(w, flusher, "status", initial)

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case record, open := <-ch:
			if !open {
				// Terminal record delivered and grace delay elapsed
				h.logger.Debug().Str("book_id", bookID).Msg("SSE status stream severed")
				return
			}
			h.sendEvent(w, flusher, "status", record)
		case <-ping.C:
			h.sendPing(w, flusher)
		case <-r.Context().Done():
			h.logger.Debug().Str("book_id", bookID).Msg("SSE client disconnected")
			return
		}
	}
}

// sendEvent writes an SSE event to the response
func (h *StreamHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, record models.StatusRecord) {
	jsonData, err := json.Marshal(record)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal SSE event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
}

func (h *StreamHandler) sendPing(w http.ResponseWriter, flusher http.Flusher) {
	fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%q}\n\n", time.Now().Format(time.RFC3339))
	flusher.Flush()
}

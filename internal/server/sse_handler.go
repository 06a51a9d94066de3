package server

import (
	"fmt"
	"net/http"
	"time"

	"rlmtrace/internal/logging"
)

const heartbeatInterval = 30 * time.Second

// SSEHandler rebroadcasts the consumed event stream to HTTP clients so a
// presentation layer can follow the run live.
type SSEHandler struct {
	broadcaster *Broadcaster
	logger      logging.Logger
}

// NewSSEHandler creates an SSE rebroadcast handler.
func NewSSEHandler(broadcaster *Broadcaster) *SSEHandler {
	return &SSEHandler{
		broadcaster: broadcaster,
		logger:      logging.NewComponentLogger("SSEHandler"),
	}
}

// HandleStream streams records until the client disconnects.
func (h *SSEHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	client, unsubscribe := h.broadcaster.Subscribe()
	defer unsubscribe()

	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case rec := <-client:
			// Preserve the wire shape: records without a designator stay
			// designator-less so the default applies downstream too.
			if rec.Event != "" {
				if _, err := fmt.Fprintf(w, "event: %s\n", rec.Event); err != nil {
					return
				}
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", rec.Data); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			h.logger.Debug("SSE client disconnected")
			return
		}
	}
}

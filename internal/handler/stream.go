package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vyakaran/platform/internal/domain"
	"github.com/vyakaran/platform/internal/infra"
)

// StreamHandler pushes a learner's progress notifications as server-sent events.
type StreamHandler struct {
	hub       *infra.NotifyHub
	heartbeat time.Duration
	logger    *slog.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(hub *infra.NotifyHub, heartbeat time.Duration, logger *slog.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &StreamHandler{hub: hub, heartbeat: heartbeat, logger: logger}
}

// Stream handles GET /progress/stream.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, err := learnerIDFromContext(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		RespondError(w, domain.ErrInternal("streaming unsupported", nil))
		return
	}

	sub, leave := h.hub.Subscribe(userID, 16)
	defer leave()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.Send:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				h.logger.Debug("stream write failed", "user_id", userID, "error", err)
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

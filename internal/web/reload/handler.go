package reload

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Path is where the live-reload stream is mounted.
const Path = "/__reload"

// Handler streams reload events to the browser as server-sent events.
type Handler struct {
	broker    *Broker
	keepalive time.Duration
}

// NewHandler returns a Handler that sends a keepalive comment at the given
// interval while no events are flowing.
func NewHandler(broker *Broker, keepalive time.Duration) *Handler {
	return &Handler{broker: broker, keepalive: keepalive}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	if _, err := fmt.Fprintf(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(h.keepalive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: reload\ndata: %s\n\n", data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// KeepAlive is how often an idle SSE connection receives a comment line.
const KeepAlive = 15 * time.Second

// EventsHandler serves playback events as Server-Sent Events.
type EventsHandler struct {
	events  *Broadcaster[Event]
	initial func() Event
	log     *slog.Logger
}

// NewEventsHandler creates an SSE handler. initial, when set, produces the
// event each new connection receives first.
func NewEventsHandler(b *Broadcaster[Event], initial func() Event, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{events: b, initial: initial, log: logger.With("component", "sse")}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	listener := h.events.Subscribe()
	defer h.events.Unsubscribe(listener)

	h.log.Info("SSE listener connected", "listeners", h.events.ListenerCount())
	defer h.log.Info("SSE listener disconnected")

	if h.initial != nil {
		if err := writeEvent(w, h.initial()); err != nil {
			return
		}
	}
	flusher.Flush()

	keepAlive := time.NewTicker(KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-listener.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case ev := <-listener.C:
			if err := writeEvent(w, ev); err != nil {
				h.log.Debug("SSE write failed", "err", err)
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, ev Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}

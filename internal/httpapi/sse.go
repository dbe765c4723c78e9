package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/salzamar/openclaw-mission-control/internal/otel"
	"github.com/salzamar/openclaw-mission-control/pkg/models"
)

// keepaliveInterval is how often an idle stream writes a comment line so
// intermediaries don't reap the connection.
const keepaliveInterval = 30 * time.Second

// EventHub fans board events (task_update, message, notification,
// agent_update, sync) out to every open /stream connection. Streams are
// keyed by a hub-local id so detach is cheap and idempotent.
type EventHub struct {
	mu      sync.Mutex
	nextID  int
	streams map[int]chan string
}

func NewEventHub() *EventHub {
	return &EventHub{streams: make(map[int]chan string)}
}

func (h *EventHub) attach() (int, chan string) {
	ch := make(chan string, models.DefaultSSEChannelBuffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.streams[id] = ch
	h.mu.Unlock()
	otel.AddSSEConnection()
	return id, ch
}

func (h *EventHub) detach(id int) {
	h.mu.Lock()
	ch, ok := h.streams[id]
	if ok {
		delete(h.streams, id)
	}
	h.mu.Unlock()
	if ok {
		close(ch)
		otel.RemoveSSEConnection()
	}
}

// PublishJSON marshals v once and offers it to every stream. A stream whose
// buffer is full misses the event; one stalled client must not hold up the
// rest of the board.
func (h *EventHub) PublishJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	payload := string(b)
	otel.RecordSSEEvent(context.Background())

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.streams {
		select {
		case ch <- payload:
		default:
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, payload string) {
	_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// Handler serves the text/event-stream endpoint. The stream opens with a
// connected event, then relays hub events until the client goes away.
func (h *EventHub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, ch := h.attach()
		defer h.detach(id)

		writeEvent(w, flusher, `{"type":"connected"}`)

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-keepalive.C:
				_, _ = fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case payload, ok := <-ch:
				if !ok {
					return
				}
				writeEvent(w, flusher, payload)
			}
		}
	}
}

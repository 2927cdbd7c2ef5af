package api

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/pathtrack/internal/planner"
)

// subscriberBuffer is the per-client window buffer depth. A subscriber that
// falls further behind than this loses windows rather than stalling anyone.
const subscriberBuffer = 10

// Hub fans published forward windows out to HTTP stream subscribers and
// keeps the most recent one for point-in-time reads. It implements
// planner.WindowSink.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]chan planner.Window
	latest  *planner.Window
	dropped atomic.Uint64
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan planner.Window)}
}

// Publish stores the window as latest and offers it to every subscriber
// without blocking.
func (h *Hub) Publish(w planner.Window) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = &w
	for _, ch := range h.subs {
		select {
		case ch <- w:
		default:
			h.dropped.Add(1)
		}
	}
}

// Latest returns the most recently published window, if any.
func (h *Hub) Latest() (planner.Window, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest == nil {
		return planner.Window{}, false
	}
	return *h.latest, true
}

// Subscribe registers a new window stream. The returned ID identifies the
// subscription for Unsubscribe.
func (h *Hub) Subscribe() (string, chan planner.Window) {
	id := uuid.NewString()
	ch := make(chan planner.Window, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

// Dropped reports how many windows were discarded for slow subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

package pipeline

import (
	"sync"

	"go.uber.org/zap"
)

// Hub fans pipeline events out to per-run subscribers. The server feeds
// it through Emitter and WebSocket clients consume via Subscribe.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Event]struct{}
	logger *zap.Logger
	closed bool
}

// NewHub creates an event hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subs:   make(map[string]map[chan Event]struct{}),
		logger: logger.With(zap.String("component", "event_hub")),
	}
}

// Emitter returns an Emitter that publishes into the hub.
func (h *Hub) Emitter() Emitter {
	return h.Publish
}

// Publish delivers an event to all subscribers of its run. Slow
// subscribers are skipped rather than blocking the pipeline.
func (h *Hub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("dropping event for slow subscriber",
				zap.String("run_id", ev.RunID),
				zap.String("type", string(ev.Type)),
			)
		}
	}
}

// Subscribe registers a subscriber for one run's events. The returned
// cancel function must be called to release the subscription.
func (h *Hub) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, 32)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[chan Event]struct{})
	}
	h.subs[runID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		// Close only if still registered; Close() may have won the race.
		set, ok := h.subs[runID]
		if !ok {
			return
		}
		if _, ok := set[ch]; !ok {
			return
		}
		delete(set, ch)
		if len(set) == 0 {
			delete(h.subs, runID)
		}
		close(ch)
	}
	return ch, cancel
}

// Close drops all subscriptions. Subsequent Subscribe calls return a
// closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for runID, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, runID)
	}
}

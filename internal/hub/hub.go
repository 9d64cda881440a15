// Package hub fans out live-update messages to subscriber connections with
// per-subscriber failure isolation.
package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Sink is one subscriber's transport: it accepts one text message at a time.
// A Send error means the subscriber is gone.
type Sink interface {
	Send(message []byte) error
	Close() error
}

type subscriber struct {
	id   string
	sink Sink
	// mu serializes sends so a subscriber is never written to concurrently.
	mu sync.Mutex
}

// Hub owns the live subscriber set. Mutation of the set and iteration during
// a broadcast are mutually exclusive; failed sinks are removed after the
// pass completes, never mid-iteration.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*subscriber

	// broadcastMu serializes Broadcast passes so every subscriber sees
	// messages in Broadcast call order.
	broadcastMu sync.Mutex

	logger *slog.Logger
}

func New(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]*subscriber),
		logger: logger,
	}
}

// Connect registers a subscriber and greets it. An empty id gets a generated
// one; reusing a live id replaces (and closes) the previous connection.
func (h *Hub) Connect(id string, sink Sink) string {
	if id == "" {
		id = uuid.NewString()
	}
	sub := &subscriber{id: id, sink: sink}

	h.mu.Lock()
	prev := h.subs[id]
	h.subs[id] = sub
	h.mu.Unlock()

	if prev != nil {
		_ = prev.sink.Close()
	}
	if h.logger != nil {
		h.logger.Info("subscriber connected", "client_id", id)
	}
	h.sendTo(sub, ConnectionEstablished(id))
	return id
}

// Disconnect removes and closes a subscriber. Idempotent.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if !ok {
		return
	}
	_ = sub.sink.Close()
	if h.logger != nil {
		h.logger.Info("subscriber disconnected", "client_id", id)
	}
}

// SendTo delivers to one subscriber, best effort. A send failure removes the
// subscriber and is not surfaced to the caller.
func (h *Hub) SendTo(id string, message []byte) {
	h.mu.RLock()
	sub, ok := h.subs[id]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.sendTo(sub, message)
}

func (h *Hub) sendTo(sub *subscriber, message []byte) {
	sub.mu.Lock()
	err := sub.sink.Send(message)
	sub.mu.Unlock()
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("send failed, dropping subscriber", "client_id", sub.id, "err", err)
		}
		h.Disconnect(sub.id)
	}
}

// Broadcast delivers to every registered subscriber. A failure for one does
// not stop delivery to the rest; failed subscribers are removed after the
// pass.
func (h *Hub) Broadcast(message []byte) {
	h.broadcastMu.Lock()
	defer h.broadcastMu.Unlock()

	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	var failed []string
	for _, sub := range targets {
		sub.mu.Lock()
		err := sub.sink.Send(message)
		sub.mu.Unlock()
		if err != nil {
			if h.logger != nil {
				h.logger.Warn("broadcast send failed", "client_id", sub.id, "err", err)
			}
			failed = append(failed, sub.id)
		}
	}
	for _, id := range failed {
		h.Disconnect(id)
	}
}

// Count reports the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ClientIDs returns the ids of all live subscribers.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.subs))
	for id := range h.subs {
		out = append(out, id)
	}
	return out
}

// CloseAll disconnects every subscriber. Used on shutdown.
func (h *Hub) CloseAll() {
	for _, id := range h.ClientIDs() {
		h.Disconnect(id)
	}
}

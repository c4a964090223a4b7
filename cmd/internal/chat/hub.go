package chat

import (
	"log/slog"
	"sync"

	v1 "gather/shared/contracts/chat/v1"
)

// Hub owns the process-wide registry mapping event ids to live rooms.
// It is injected into the gateways rather than reached as a global, and it is
// intentionally minimal: persistence lives behind MessageStore.
type Hub struct {
	log     *slog.Logger
	metrics *Metrics

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewHub constructs a Hub instance. Metrics may be nil.
func NewHub(log *slog.Logger, metrics *Metrics) *Hub {
	return &Hub{
		log:     log,
		metrics: metrics,
		rooms:   make(map[string]*Room),
	}
}

// GetOrCreateRoom returns a stable in-memory room handle for an event.
func (h *Hub) GetOrCreateRoom(eventID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[eventID]; ok {
		return r
	}

	r := NewRoom(h.log, eventID, h.metrics)
	h.rooms[eventID] = r
	return r
}

// Broadcast delivers an envelope to the event's room if one exists.
// Used by the discrete ingress path so REST-created messages reach live
// subscribers too; without a room it is a no-op.
func (h *Hub) Broadcast(eventID string, env v1.Envelope) {
	h.mu.RLock()
	r := h.rooms[eventID]
	h.mu.RUnlock()

	if r != nil {
		r.Broadcast(env)
	}
}

package chat

import (
	"log/slog"
	"sync"

	v1 "gather/shared/contracts/chat/v1"
)

// Room is the in-memory membership + broadcast fan-out primitive for one
// event's chat.
//
// Concurrency guarantees:
// - Join/Leave are safe under concurrent Broadcast.
// - Broadcast never blocks (drops under backpressure).
// - Broadcast is panic-safe because Client.Send is never closed by the server.
//
// Ordering: callers invoke Broadcast only after the store confirmed the
// corresponding write, and do so from the goroutine that performed the write,
// so members observe one event's broadcasts in store-confirmed order.
type Room struct {
	log     *slog.Logger
	EventID string

	metrics *Metrics

	mu      sync.RWMutex
	members map[string]*Client
}

// NewRoom constructs a room for an event's chat. Metrics may be nil.
func NewRoom(log *slog.Logger, eventID string, metrics *Metrics) *Room {
	return &Room{
		log:     log,
		EventID: eventID,
		metrics: metrics,
		members: make(map[string]*Client),
	}
}

// Join adds a client to membership.
func (r *Room) Join(client *Client) {
	if r == nil || client == nil || client.SessionID == "" {
		return
	}

	r.mu.Lock()
	r.members[client.SessionID] = client
	r.mu.Unlock()

	r.log.Info("room.member.join", "event_id", r.EventID, "session_id", client.SessionID)
}

// Leave removes a client from membership and signals shutdown for that client.
func (r *Room) Leave(sessionID string) {
	if r == nil || sessionID == "" {
		return
	}

	var cl *Client

	r.mu.Lock()
	cl = r.members[sessionID]
	delete(r.members, sessionID)
	r.mu.Unlock()

	// Signal client shutdown after removing from membership.
	// This ordering avoids race windows where a broadcaster still holds a pointer
	// while the client goroutines are being torn down.
	if cl != nil {
		cl.Close()
	}

	r.log.Info("room.member.leave", "event_id", r.EventID, "session_id", sessionID)
}

// Broadcast fans an envelope out to all members.
// Non-blocking: if a member queue is full or the client is shutting down, the
// envelope is dropped for that member (and counted).
func (r *Room) Broadcast(env v1.Envelope) {
	if r == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	r.metrics.IncBroadcasts(env.Type)

	for _, m := range r.members {
		if m == nil {
			continue
		}

		select {
		case <-m.Done():
			// Skip clients that are shutting down.
			continue
		default:
		}

		select {
		case m.Send <- env:
		default:
			// Drop rather than block the whole room.
			r.metrics.IncBroadcastDrops(env.Type)
		}
	}
}

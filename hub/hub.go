package hub

import (
	"log/slog"
	"sync"

	"github.com/Shubbu03/illustrations/domain"
)

type room struct {
	clients map[string]domain.Connection
	mu      sync.RWMutex
}

// Hub is the room subscription index: which connections are subscribed
// to which rooms. A room entry exists only while it has subscribers.
type Hub struct {
	rooms map[int64]*room
	// members tracks, per connection id, the rooms it has joined, so a
	// disconnect can evict the connection from every index at once.
	members map[string]map[int64]struct{}
	mu      sync.RWMutex
}

func New() *Hub {
	return &Hub{
		rooms:   make(map[int64]*room),
		members: make(map[string]map[int64]struct{}),
	}
}

// Join subscribes the connection to the room. Joining a room already
// joined is a no-op.
func (h *Hub) Join(conn domain.Connection, roomID int64) {
	h.mu.Lock()
	rooms := h.members[conn.ID()]
	if rooms == nil {
		rooms = make(map[int64]struct{})
		h.members[conn.ID()] = rooms
	}
	if _, joined := rooms[roomID]; joined {
		h.mu.Unlock()
		return
	}
	rooms[roomID] = struct{}{}

	r, exists := h.rooms[roomID]
	if !exists {
		r = &room{clients: make(map[string]domain.Connection)}
		h.rooms[roomID] = r
	}
	r.mu.Lock()
	r.clients[conn.ID()] = conn
	count := len(r.clients)
	r.mu.Unlock()
	h.mu.Unlock()

	slog.Info("client joined room", "room", roomID, "clientId", conn.ID(), "clients", count)
}

// Leave unsubscribes the connection from the room. Leaving a room not
// joined is a no-op.
func (h *Hub) Leave(conn domain.Connection, roomID int64) {
	h.mu.Lock()
	h.removeLocked(conn.ID(), roomID)
	if rooms := h.members[conn.ID()]; rooms != nil {
		delete(rooms, roomID)
	}
	h.mu.Unlock()
}

// Disconnect evicts the connection from every room it joined and drops
// its membership record. Safe to call more than once; only the first
// call does any work.
func (h *Hub) Disconnect(conn domain.Connection) {
	h.mu.Lock()
	rooms := h.members[conn.ID()]
	delete(h.members, conn.ID())
	for roomID := range rooms {
		h.removeLocked(conn.ID(), roomID)
	}
	h.mu.Unlock()

	if len(rooms) > 0 {
		slog.Info("client disconnected", "clientId", conn.ID(), "rooms", len(rooms))
	}
}

// removeLocked drops the connection from one room's subscriber set and
// deletes the room when it empties. Caller holds h.mu.
func (h *Hub) removeLocked(connID string, roomID int64) {
	r, exists := h.rooms[roomID]
	if !exists {
		return
	}
	r.mu.Lock()
	delete(r.clients, connID)
	count := len(r.clients)
	r.mu.Unlock()

	if count == 0 {
		delete(h.rooms, roomID)
		slog.Info("room removed", "room", roomID)
	}
}

// IsMember reports whether the connection currently subscribes to the room.
func (h *Hub) IsMember(conn domain.Connection, roomID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.members[conn.ID()][roomID]
	return ok
}

// Broadcast delivers data to every subscriber of the room except the
// sender. A nil sender delivers to everyone. A peer that cannot accept
// the send is skipped; delivery to the rest continues.
func (h *Hub) Broadcast(roomID int64, sender domain.Connection, data []byte) {
	h.mu.RLock()
	r, exists := h.rooms[roomID]
	h.mu.RUnlock()

	if !exists {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, conn := range r.clients {
		if sender != nil && id == sender.ID() {
			continue
		}
		if err := conn.Send(data); err != nil {
			slog.Warn("dropping frame for slow or closed peer", "room", roomID, "clientId", id, "error", err)
		}
	}
}

func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rooms = len(h.rooms)
	for _, r := range h.rooms {
		r.mu.RLock()
		clients += len(r.clients)
		r.mu.RUnlock()
	}
	return rooms, clients
}

package websocket

import (
	"fmt"
	"sync"
)

// DirectRoomKey builds the canonical room key for a user pair. Both sides
// of the conversation compute the same key regardless of who connected.
func DirectRoomKey(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("chat_%d_%d", userA, userB)
}

// GroupRoomKey builds the room key for a group chat.
func GroupRoomKey(groupID int64) string {
	return fmt.Sprintf("group_%d", groupID)
}

// Hub is the process-wide room registry: room key -> set of live clients.
// It is constructed explicitly and injected into the gateway so tests can
// build a fresh one. The hub is the only shared mutable state between
// sessions; no lock is ever held across transport I/O.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]bool),
	}
}

// Join adds a client to a room. Joining a room the client is already in
// is a no-op.
func (h *Hub) Join(room string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
}

// Leave removes a client from a room and closes its send channel. The room
// entry is dropped once empty. Leaving twice is a no-op.
func (h *Hub) Leave(room string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[room]
	if !ok || !clients[client] {
		return
	}

	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, room)
	}

	client.close()
}

// Broadcast enqueues payload on every client currently in the room,
// including the sender. A client whose buffer is full is treated as dead
// and evicted; delivery to the rest is unaffected.
func (h *Hub) Broadcast(room string, payload []byte) {
	h.mu.RLock()
	var stuck []*Client
	for client := range h.rooms[room] {
		if !client.trySend(payload) {
			stuck = append(stuck, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stuck {
		h.Leave(room, client)
	}
}

// RoomSize reports how many clients are currently joined to a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

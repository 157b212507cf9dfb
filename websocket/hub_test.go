package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chatapi/models"
)

func newTestClient(id string, buffer int) *Client {
	return &Client{
		ID:   id,
		User: &models.User{ID: 1, Email: "test@example.com"},
		Send: make(chan []byte, buffer),
	}
}

func TestDirectRoomKeySymmetry(t *testing.T) {
	assert.Equal(t, DirectRoomKey(1, 2), DirectRoomKey(2, 1))
	assert.Equal(t, "chat_1_2", DirectRoomKey(2, 1))
	assert.Equal(t, "chat_7_7", DirectRoomKey(7, 7))
}

func TestGroupRoomKey(t *testing.T) {
	assert.Equal(t, "group_42", GroupRoomKey(42))
}

func TestJoinIsIdempotent(t *testing.T) {
	hub := NewHub()
	client := newTestClient("a", 1)

	hub.Join("room", client)
	hub.Join("room", client)

	assert.Equal(t, 1, hub.RoomSize("room"))
}

func TestLeaveIsIdempotentAndDropsEmptyRooms(t *testing.T) {
	hub := NewHub()
	client := newTestClient("a", 1)

	hub.Join("room", client)
	hub.Leave("room", client)
	assert.Equal(t, 0, hub.RoomSize("room"))

	// Leaving again, or leaving a room never joined, is a no-op.
	hub.Leave("room", client)
	hub.Leave("other", client)
}

func TestBroadcastReachesEveryClientIncludingSender(t *testing.T) {
	hub := NewHub()
	clients := []*Client{
		newTestClient("a", 4),
		newTestClient("b", 4),
		newTestClient("c", 4),
	}
	for _, c := range clients {
		hub.Join("room", c)
	}

	payload := []byte(`{"content":"hi"}`)
	hub.Broadcast("room", payload)

	for _, c := range clients {
		select {
		case got := <-c.Send:
			assert.Equal(t, payload, got)
		default:
			t.Fatalf("client %s received nothing", c.ID)
		}
	}
}

func TestBroadcastDoesNotCrossRooms(t *testing.T) {
	hub := NewHub()
	inRoom := newTestClient("a", 4)
	elsewhere := newTestClient("b", 4)

	hub.Join("room_x", inRoom)
	hub.Join("room_y", elsewhere)

	hub.Broadcast("room_x", []byte("x"))

	assert.Len(t, inRoom.Send, 1)
	assert.Len(t, elsewhere.Send, 0)
}

func TestBroadcastEvictsClientWithFullBuffer(t *testing.T) {
	hub := NewHub()
	healthy := newTestClient("a", 4)
	stuck := newTestClient("b", 0)

	hub.Join("room", healthy)
	hub.Join("room", stuck)

	hub.Broadcast("room", []byte("one"))

	// The stuck client is removed and its channel closed; the healthy one
	// still gets the payload.
	assert.Equal(t, 1, hub.RoomSize("room"))
	assert.Equal(t, []byte("one"), <-healthy.Send)
	_, open := <-stuck.Send
	assert.False(t, open)

	// A later broadcast never touches the evicted client.
	hub.Broadcast("room", []byte("two"))
	assert.Equal(t, []byte("two"), <-healthy.Send)
}

func TestErrorFrameAfterEvictionIsDropped(t *testing.T) {
	hub := NewHub()
	client := newTestClient("a", 0)
	hub.Join("room", client)

	// Another session's broadcast evicts the full client and closes its
	// send channel while this client's read loop may still be mid-frame.
	hub.Broadcast("room", []byte("x"))
	assert.Equal(t, 0, hub.RoomSize("room"))

	// Enqueueing on the evicted session must drop the frame, not panic.
	assert.NotPanics(t, func() {
		client.sendError("too slow")
	})
	assert.NotPanics(t, func() {
		client.trySend([]byte("late broadcast"))
	})
}

func TestLeaveAfterBroadcastEviction(t *testing.T) {
	hub := NewHub()
	stuck := newTestClient("a", 0)

	hub.Join("room", stuck)
	hub.Broadcast("room", []byte("x"))

	// Eviction already removed the client; the read pump's own Leave on
	// disconnect must still be safe.
	hub.Leave("room", stuck)
	assert.Equal(t, 0, hub.RoomSize("room"))
}

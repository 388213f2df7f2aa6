package ws

import (
	"testing"

	"campus-chat/internal/models"
)

// closedClient builds a registered client whose writes fail immediately,
// which is enough for bookkeeping tests.
func closedClient(userID int, connID string) *Client {
	return &Client{info: ConnInfo{UserID: userID, ConnID: connID}, closed: true}
}

func TestHubJoinAndLeaveRoom(t *testing.T) {
	hub := NewHub()
	c := closedClient(1, "a")
	hub.Register(c)

	hub.Join(c, conversationRoom(5))
	if len(hub.rooms[conversationRoom(5)]) != 1 {
		t.Fatalf("expected room to contain the client")
	}

	hub.Leave(c, conversationRoom(5))
	if len(hub.rooms) != 0 {
		t.Fatalf("expected empty room to be dropped")
	}
}

func TestHubUnregisterCleansAllRooms(t *testing.T) {
	hub := NewHub()
	c := closedClient(1, "a")
	hub.Register(c)
	hub.Join(c, conversationRoom(5))
	hub.Join(c, userRoom(1))

	hub.Unregister(c)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected all rooms to be dropped")
	}
	if len(hub.clients) != 0 {
		t.Fatalf("expected client registry to be empty")
	}
	if len(hub.userClients) != 0 {
		t.Fatalf("expected user index to be empty")
	}
}

func TestHubJoinConversationCoversAllDevices(t *testing.T) {
	hub := NewHub()
	phone := closedClient(1, "phone")
	laptop := closedClient(1, "laptop")
	hub.Register(phone)
	hub.Register(laptop)

	hub.JoinConversation(1, 7)
	if len(hub.rooms[conversationRoom(7)]) != 2 {
		t.Fatalf("expected both devices in the room, got %d", len(hub.rooms[conversationRoom(7)]))
	}

	hub.LeaveConversation(1, 7)
	if len(hub.rooms[conversationRoom(7)]) != 0 {
		t.Fatalf("expected both devices evicted")
	}
}

func TestHubBroadcastEvictsFailingConnections(t *testing.T) {
	hub := NewHub()
	c := closedClient(1, "a")
	hub.Register(c)
	hub.Join(c, conversationRoom(5))

	hub.ToConversation(5, models.MessageDeleted{ConversationID: 5, MessageID: 1})

	if len(hub.clients) != 0 {
		t.Fatalf("expected failing client to be unregistered")
	}
}

func TestHubJoinIgnoresUnregisteredClients(t *testing.T) {
	hub := NewHub()
	c := closedClient(1, "a")

	hub.Join(c, conversationRoom(5))
	if len(hub.rooms) != 0 {
		t.Fatalf("unregistered client must not join rooms")
	}
}

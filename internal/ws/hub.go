package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"campus-chat/internal/models"
	"campus-chat/internal/observability"
)

// Hub maintains the live connection registry and its room subscriptions.
// Rooms are named strings: one per conversation and one per user, so a
// user's every device receives conversation traffic and direct
// notifications alike.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	rooms       map[string]map[*Client]struct{}
	clientRooms map[*Client]map[string]struct{}
	userClients map[int]map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]struct{}),
		rooms:       make(map[string]map[*Client]struct{}),
		clientRooms: make(map[*Client]map[string]struct{}),
		userClients: make(map[int]map[*Client]struct{}),
	}
}

// Register adds a connection to the registry.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if _, ok := h.userClients[c.info.UserID]; !ok {
		h.userClients[c.info.UserID] = make(map[*Client]struct{})
	}
	h.userClients[c.info.UserID][c] = struct{}{}
}

// Unregister drops a connection from the registry and every room, then
// closes it.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	for room := range h.clientRooms[c] {
		h.removeFromRoom(c, room)
	}
	delete(h.clientRooms, c)
	delete(h.clients, c)
	if set, ok := h.userClients[c.info.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.userClients, c.info.UserID)
		}
	}
	h.mu.Unlock()
	c.Close()
}

// Join subscribes a connection to a room.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	if _, ok := h.clientRooms[c]; !ok {
		h.clientRooms[c] = make(map[string]struct{})
	}
	h.clientRooms[c][room] = struct{}{}
}

// Leave unsubscribes a connection from a room.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(c, room)
	if rooms, ok := h.clientRooms[c]; ok {
		delete(rooms, room)
	}
}

// removeFromRoom must be called with the write lock held.
func (h *Hub) removeFromRoom(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// ToConversation emits to every connection in the conversation room.
func (h *Hub) ToConversation(conversationID int, event models.OutboundEvent) {
	h.broadcast(h.roomMembers(conversationRoom(conversationID)), event, nil)
}

// ToConversationExcept emits to the conversation room, skipping one
// connection. Typing relays use this so the typist's own device stays
// quiet.
func (h *Hub) ToConversationExcept(conversationID int, event models.OutboundEvent, except *Client) {
	h.broadcast(h.roomMembers(conversationRoom(conversationID)), event, except)
}

// ToUser emits to every connection in the user's notification room.
func (h *Hub) ToUser(userID int, event models.OutboundEvent) {
	h.broadcast(h.roomMembers(userRoom(userID)), event, nil)
}

// BroadcastAll emits to every registered connection, optionally skipping
// one. Presence transitions use this.
func (h *Hub) BroadcastAll(event models.OutboundEvent, except *Client) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	h.broadcast(targets, event, except)
}

// JoinConversation subscribes all of a user's live connections to a
// conversation room.
func (h *Hub) JoinConversation(userID, conversationID int) {
	for _, c := range h.clientsForUser(userID) {
		h.Join(c, conversationRoom(conversationID))
	}
}

// LeaveConversation evicts all of a user's live connections from a
// conversation room.
func (h *Hub) LeaveConversation(userID, conversationID int) {
	for _, c := range h.clientsForUser(userID) {
		h.Leave(c, conversationRoom(conversationID))
	}
}

func (h *Hub) roomMembers(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	return members
}

func (h *Hub) clientsForUser(userID int) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.userClients[userID]))
	for c := range h.userClients[userID] {
		clients = append(clients, c)
	}
	return clients
}

// broadcast writes outside the hub lock; a failed write evicts the
// connection.
func (h *Hub) broadcast(targets []*Client, event models.OutboundEvent, except *Client) {
	for _, c := range targets {
		if c == except {
			continue
		}
		if err := c.Send(event); err != nil {
			log.Printf("websocket write error: %v", err)
			h.Unregister(c)
			h.publishWSError(c, event.Event(), err)
		}
	}
}

func (h *Hub) publishWSError(c *Client, event string, err error) {
	info := c.info
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "conversations",
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
			"during":      event,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.conversations", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("conversations", "ws_error")
}

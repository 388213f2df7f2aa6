package chat

import "campus-chat/internal/models"

// Notifier fans events out to connected clients. Both surfaces (websocket
// and HTTP) mutate through the services, so every mutation reaches live
// connections regardless of which surface performed it.
type Notifier interface {
	// ToConversation emits to every connection subscribed to the
	// conversation room.
	ToConversation(conversationID int, event models.OutboundEvent)
	// ToUser emits to every connection in the user's notification room.
	ToUser(userID int, event models.OutboundEvent)
	// JoinConversation subscribes all of a user's live connections to a
	// conversation room, so new members need no explicit join.
	JoinConversation(userID, conversationID int)
	// LeaveConversation evicts all of a user's live connections from a
	// conversation room as soon as their membership ends.
	LeaveConversation(userID, conversationID int)
}

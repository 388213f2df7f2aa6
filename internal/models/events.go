package models

// OutboundEvent is a notification fanned out over websocket rooms. The wire
// format is an envelope {event, data}; Event supplies the name.
type OutboundEvent interface {
	Event() string
}

// MessageNew announces a newly stored message to a conversation room.
type MessageNew struct {
	ConversationID int         `json:"conversationId"`
	Message        MessageView `json:"message"`
}

func (MessageNew) Event() string { return "message:new" }

// MessageEdited announces an edit by the original sender.
type MessageEdited struct {
	ConversationID int         `json:"conversationId"`
	Message        MessageView `json:"message"`
}

func (MessageEdited) Event() string { return "message:edited" }

// MessageDeleted announces a soft deletion.
type MessageDeleted struct {
	ConversationID int `json:"conversationId"`
	MessageID      int `json:"messageId"`
}

func (MessageDeleted) Event() string { return "message:deleted" }

// MessagesRead carries a batch read receipt.
type MessagesRead struct {
	ConversationID int   `json:"conversationId"`
	MessageIDs     []int `json:"messageIds"`
	UserID         int   `json:"userId"`
}

func (MessagesRead) Event() string { return "messages:read" }

// ConversationMessages delivers a page of history to a single connection
// after it joins a conversation room.
type ConversationMessages struct {
	ConversationID int           `json:"conversationId"`
	Messages       []MessageView `json:"messages"`
}

func (ConversationMessages) Event() string { return "conversation:messages" }

// ConversationNew notifies a user that a conversation now includes them.
type ConversationNew struct {
	Conversation ConversationView `json:"conversation"`
}

func (ConversationNew) Event() string { return "conversation:new" }

// ConversationUpdated announces membership or detail changes.
type ConversationUpdated struct {
	Conversation ConversationView `json:"conversation"`
}

func (ConversationUpdated) Event() string { return "conversation:updated" }

// ParticipantLeft announces a removal or self-leave.
type ParticipantLeft struct {
	ConversationID int `json:"conversationId"`
	UserID         int `json:"userId"`
}

func (ParticipantLeft) Event() string { return "participant:left" }

// ParticipantJoined announces a user joining an existing course group.
type ParticipantJoined struct {
	ConversationID int         `json:"conversationId"`
	User           UserSummary `json:"user"`
}

func (ParticipantJoined) Event() string { return "participant:joined" }

// UserTyping / UserStoppedTyping are relayed, never persisted.
type UserTyping struct {
	ConversationID int `json:"conversationId"`
	UserID         int `json:"userId"`
}

func (UserTyping) Event() string { return "user:typing" }

type UserStoppedTyping struct {
	ConversationID int `json:"conversationId"`
	UserID         int `json:"userId"`
}

func (UserStoppedTyping) Event() string { return "user:stopTyping" }

// PresenceOnline / PresenceOffline track the first connect and last
// disconnect of a user across all of their devices.
type PresenceOnline struct {
	UserID int `json:"userId"`
}

func (PresenceOnline) Event() string { return "presence:online" }

type PresenceOffline struct {
	UserID int `json:"userId"`
}

func (PresenceOffline) Event() string { return "presence:offline" }

// ErrorEvent is sent only to the connection whose command failed.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ErrorEvent) Event() string { return "error" }

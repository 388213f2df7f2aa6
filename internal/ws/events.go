package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"campus-chat/internal/chat"
	"campus-chat/internal/models"
)

const historyPageSize = 50

// inboundEnvelope is the wire framing for everything clients send.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinConversationPayload struct {
	ConversationID int `json:"conversationId"`
}

type sendMessagePayload struct {
	ConversationID int                `json:"conversationId"`
	Content        string             `json:"content"`
	Kind           string             `json:"type"`
	Attachments    models.Attachments `json:"attachments"`
}

type editMessagePayload struct {
	MessageID int    `json:"messageId"`
	Content   string `json:"content"`
}

type deleteMessagePayload struct {
	MessageID int `json:"messageId"`
}

type typingPayload struct {
	ConversationID int `json:"conversationId"`
}

type markReadPayload struct {
	ConversationID int   `json:"conversationId"`
	MessageIDs     []int `json:"messageIds"`
}

type createGroupPayload struct {
	Kind           string `json:"kind"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	AllowedToPost  string `json:"allowedToPost"`
	ParticipantIDs []int  `json:"participantIds"`
}

type addParticipantsPayload struct {
	ConversationID int   `json:"conversationId"`
	UserIDs        []int `json:"userIds"`
}

type leaveGroupPayload struct {
	ConversationID int `json:"conversationId"`
}

// Router dispatches inbound websocket commands to the chat services. Every
// command is authorized server-side; a failed command answers only the
// originating connection with an error event.
type Router struct {
	hub           *Hub
	conversations *chat.ConversationService
	messages      *chat.MessageService
}

// NewRouter constructs a Router.
func NewRouter(hub *Hub, conversations *chat.ConversationService, messages *chat.MessageService) *Router {
	return &Router{hub: hub, conversations: conversations, messages: messages}
}

// Dispatch parses one inbound frame and runs the matching command.
func (r *Router) Dispatch(ctx context.Context, client *Client, raw []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.sendError(client, fmt.Errorf("%w: malformed frame", chat.ErrValidation))
		return
	}

	var err error
	switch env.Event {
	case "conversation:join":
		err = r.joinConversation(ctx, client, env.Data)
	case "message:send":
		err = r.sendMessage(ctx, client, env.Data)
	case "message:edit":
		err = r.editMessage(ctx, client, env.Data)
	case "message:delete":
		err = r.deleteMessage(ctx, client, env.Data)
	case "messages:markRead":
		err = r.markRead(ctx, client, env.Data)
	case "typing:start":
		err = r.typing(ctx, client, env.Data, true)
	case "typing:stop":
		err = r.typing(ctx, client, env.Data, false)
	case "group:create":
		err = r.createGroup(ctx, client, env.Data)
	case "group:addParticipants":
		err = r.addParticipants(ctx, client, env.Data)
	case "group:leave":
		err = r.leaveGroup(ctx, client, env.Data)
	default:
		err = fmt.Errorf("%w: unknown event %q", chat.ErrValidation, env.Event)
	}
	if err != nil {
		r.sendError(client, err)
	}
}

// joinConversation subscribes the connection to a conversation room and
// answers it with the latest page of history, marked read for the joiner.
func (r *Router) joinConversation(ctx context.Context, client *Client, data json.RawMessage) error {
	var p joinConversationPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	userID := client.info.UserID

	member, err := r.conversations.IsParticipant(ctx, p.ConversationID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: not a participant", chat.ErrNotAuthorized)
	}

	r.hub.Join(client, conversationRoom(p.ConversationID))

	page, err := r.messages.History(ctx, p.ConversationID, userID, models.MessagePageOptions{Page: 1, Limit: historyPageSize}, userID)
	if err != nil {
		return err
	}
	if err := client.Send(models.ConversationMessages{ConversationID: p.ConversationID, Messages: page}); err != nil {
		log.Printf("deliver history to conn %s: %v", client.info.ConnID, err)
	}
	return nil
}

func (r *Router) sendMessage(ctx context.Context, client *Client, data json.RawMessage) error {
	var p sendMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := r.messages.Send(ctx, chat.SendParams{
		ConversationID: p.ConversationID,
		SenderID:       client.info.UserID,
		Content:        p.Content,
		Kind:           p.Kind,
		Attachments:    p.Attachments,
	})
	return err
}

func (r *Router) editMessage(ctx context.Context, client *Client, data json.RawMessage) error {
	var p editMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := r.messages.Edit(ctx, p.MessageID, client.info.UserID, p.Content)
	return err
}

func (r *Router) deleteMessage(ctx context.Context, client *Client, data json.RawMessage) error {
	var p deleteMessagePayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return r.messages.Delete(ctx, p.MessageID, client.info.UserID)
}

func (r *Router) markRead(ctx context.Context, client *Client, data json.RawMessage) error {
	var p markReadPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return r.messages.MarkRead(ctx, p.ConversationID, p.MessageIDs, client.info.UserID)
}

// typing relays are transient: verified against membership, never stored,
// and never echoed back to the typist's own connection.
func (r *Router) typing(ctx context.Context, client *Client, data json.RawMessage, start bool) error {
	var p typingPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	userID := client.info.UserID

	member, err := r.conversations.IsParticipant(ctx, p.ConversationID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: not a participant", chat.ErrNotAuthorized)
	}

	if start {
		r.hub.ToConversationExcept(p.ConversationID, models.UserTyping{ConversationID: p.ConversationID, UserID: userID}, client)
	} else {
		r.hub.ToConversationExcept(p.ConversationID, models.UserStoppedTyping{ConversationID: p.ConversationID, UserID: userID}, client)
	}
	return nil
}

func (r *Router) createGroup(ctx context.Context, client *Client, data json.RawMessage) error {
	var p createGroupPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	kind := models.ConversationKind(p.Kind)
	if p.Kind == "" {
		kind = models.KindGroup
	}
	_, err := r.conversations.CreateGroup(ctx, chat.CreateGroupParams{
		Kind:           kind,
		CreatorID:      client.info.UserID,
		Name:           p.Name,
		Description:    p.Description,
		AllowedToPost:  p.AllowedToPost,
		ParticipantIDs: p.ParticipantIDs,
	})
	return err
}

func (r *Router) addParticipants(ctx context.Context, client *Client, data json.RawMessage) error {
	var p addParticipantsPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	_, err := r.conversations.AddParticipants(ctx, p.ConversationID, client.info.UserID, p.UserIDs)
	return err
}

func (r *Router) leaveGroup(ctx context.Context, client *Client, data json.RawMessage) error {
	var p leaveGroupPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return r.conversations.RemoveParticipant(ctx, p.ConversationID, client.info.UserID, client.info.UserID)
}

func (r *Router) sendError(client *Client, err error) {
	event := models.ErrorEvent{Code: chat.CodeFor(err), Message: err.Error()}
	if sendErr := client.Send(event); sendErr != nil {
		log.Printf("deliver error to conn %s: %v", client.info.ConnID, sendErr)
	}
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing payload", chat.ErrValidation)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: malformed payload", chat.ErrValidation)
	}
	return nil
}

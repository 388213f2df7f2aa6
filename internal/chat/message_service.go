package chat

import (
	"context"
	"errors"
	"fmt"
	"log"

	"campus-chat/internal/models"
	"campus-chat/internal/repositories"
)

// MessageService implements the message ledger operations with server-side
// authorization, fanning results out through the Notifier. Mutation and
// broadcast are atomic from the caller's perspective: nothing is emitted
// unless the mutation succeeded.
type MessageService struct {
	msgRepo  repositories.MessageRepository
	convRepo repositories.ConversationRepository
	userRepo repositories.UserRepository
	notifier Notifier
}

// NewMessageService constructs a MessageService.
func NewMessageService(
	msgRepo repositories.MessageRepository,
	convRepo repositories.ConversationRepository,
	userRepo repositories.UserRepository,
	notifier Notifier,
) *MessageService {
	return &MessageService{
		msgRepo:  msgRepo,
		convRepo: convRepo,
		userRepo: userRepo,
		notifier: notifier,
	}
}

// SendParams describes an inbound send from either surface.
type SendParams struct {
	ConversationID int
	SenderID       int
	Content        string
	Kind           string
	Attachments    models.Attachments
}

// Send validates, appends to the ledger, refreshes the conversation's
// last-message cache and broadcasts message:new to the conversation room.
// Broadcast conversations restricted to admins reject non-admin senders
// before anything is written.
func (s *MessageService) Send(ctx context.Context, params SendParams) (models.MessageView, error) {
	conv, err := s.convRepo.Get(ctx, params.ConversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return models.MessageView{}, fmt.Errorf("%w: conversation", ErrNotFound)
		}
		return models.MessageView{}, err
	}

	member, err := s.convRepo.IsParticipant(ctx, conv.ID, params.SenderID)
	if err != nil {
		return models.MessageView{}, err
	}
	if !member {
		return models.MessageView{}, fmt.Errorf("%w: not a participant", ErrNotAuthorized)
	}

	if conv.Kind == models.KindBroadcast && conv.AllowedToPost == models.PostAdmins {
		admin, err := s.convRepo.IsAdmin(ctx, conv.ID, params.SenderID)
		if err != nil {
			return models.MessageView{}, err
		}
		if !admin {
			return models.MessageView{}, fmt.Errorf("%w: only admins can post in this channel", ErrNotAuthorized)
		}
	}

	kind := params.Kind
	if kind == "" {
		kind = models.MessageText
	}
	if kind != models.MessageText && kind != models.MessageImage && kind != models.MessageFile {
		return models.MessageView{}, fmt.Errorf("%w: unknown message type %q", ErrValidation, kind)
	}
	if params.Content == "" && len(params.Attachments) == 0 {
		return models.MessageView{}, fmt.Errorf("%w: message needs content or attachments", ErrValidation)
	}
	if len(params.Content) > models.MaxContentLength {
		return models.MessageView{}, fmt.Errorf("%w: content exceeds %d characters", ErrValidation, models.MaxContentLength)
	}

	msg, err := s.msgRepo.Create(ctx, conv.ID, params.SenderID, params.Content, kind, params.Attachments)
	if err != nil {
		return models.MessageView{}, err
	}

	if err := s.convRepo.TouchLastMessage(ctx, conv.ID, msg.ID); err != nil {
		// The cache self-heals on the next send; the message itself is stored.
		log.Printf("touch last message for conversation %d: %v", conv.ID, err)
	}

	view, err := s.projectOne(ctx, msg)
	if err != nil {
		return models.MessageView{}, err
	}
	s.notifier.ToConversation(conv.ID, models.MessageNew{
		ConversationID: conv.ID,
		Message:        view,
	})
	return view, nil
}

// History returns one page of non-deleted messages in chronological order.
// When markReadFor is non-zero the page is receipted for that user before
// the receipts are read back, so the caller sees itself in readBy.
func (s *MessageService) History(ctx context.Context, conversationID, requesterID int, opts models.MessagePageOptions, markReadFor int) ([]models.MessageView, error) {
	member, err := s.convRepo.IsParticipant(ctx, conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, fmt.Errorf("%w: not a participant", ErrNotAuthorized)
	}

	msgs, err := s.msgRepo.ListPage(ctx, conversationID, opts)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}

	if markReadFor != 0 {
		if err := s.msgRepo.MarkRead(ctx, conversationID, ids, markReadFor); err != nil {
			return nil, err
		}
	}

	return s.project(ctx, msgs)
}

// MarkRead appends receipts for the given messages and broadcasts the batch
// to the conversation room. Set-add semantics make repeated and concurrent
// calls from multiple devices harmless.
func (s *MessageService) MarkRead(ctx context.Context, conversationID int, messageIDs []int, userID int) error {
	member, err := s.convRepo.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: not a participant", ErrNotAuthorized)
	}

	if err := s.msgRepo.MarkRead(ctx, conversationID, messageIDs, userID); err != nil {
		return err
	}

	s.notifier.ToConversation(conversationID, models.MessagesRead{
		ConversationID: conversationID,
		MessageIDs:     messageIDs,
		UserID:         userID,
	})
	return nil
}

// Edit replaces content; only the original sender may edit, and deleted
// messages are gone as far as editing is concerned.
func (s *MessageService) Edit(ctx context.Context, messageID, requesterID int, content string) (models.MessageView, error) {
	msg, err := s.getMessage(ctx, messageID)
	if err != nil {
		return models.MessageView{}, err
	}
	if msg.SenderID != requesterID {
		return models.MessageView{}, fmt.Errorf("%w: only the sender can edit a message", ErrNotAuthorized)
	}
	if content == "" {
		return models.MessageView{}, fmt.Errorf("%w: content is required", ErrValidation)
	}
	if len(content) > models.MaxContentLength {
		return models.MessageView{}, fmt.Errorf("%w: content exceeds %d characters", ErrValidation, models.MaxContentLength)
	}

	updated, err := s.msgRepo.Edit(ctx, messageID, content)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.MessageView{}, fmt.Errorf("%w: message", ErrNotFound)
		}
		return models.MessageView{}, err
	}

	view, err := s.projectOne(ctx, updated)
	if err != nil {
		return models.MessageView{}, err
	}
	s.notifier.ToConversation(updated.ConversationID, models.MessageEdited{
		ConversationID: updated.ConversationID,
		Message:        view,
	})
	return view, nil
}

// Delete soft-deletes; only the original sender may delete. The row stays
// for audit and ordering, but disappears from reads.
func (s *MessageService) Delete(ctx context.Context, messageID, requesterID int) error {
	msg, err := s.getMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return fmt.Errorf("%w: only the sender can delete a message", ErrNotAuthorized)
	}

	if err := s.msgRepo.SoftDelete(ctx, messageID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return fmt.Errorf("%w: message", ErrNotFound)
		}
		return err
	}

	s.notifier.ToConversation(msg.ConversationID, models.MessageDeleted{
		ConversationID: msg.ConversationID,
		MessageID:      messageID,
	})
	return nil
}

// getMessage treats soft-deleted messages as absent for mutation purposes.
func (s *MessageService) getMessage(ctx context.Context, messageID int) (models.Message, error) {
	msg, err := s.msgRepo.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return models.Message{}, fmt.Errorf("%w: message", ErrNotFound)
		}
		return models.Message{}, err
	}
	if msg.IsDeleted {
		return models.Message{}, fmt.Errorf("%w: message", ErrNotFound)
	}
	return msg, nil
}

// project joins sender display fields and read receipts onto a page of
// messages. Read-side only.
func (s *MessageService) project(ctx context.Context, msgs []models.Message) ([]models.MessageView, error) {
	if len(msgs) == 0 {
		return []models.MessageView{}, nil
	}

	ids := make([]int, 0, len(msgs))
	senderIDs := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		ids = append(ids, m.ID)
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	receipts, err := s.msgRepo.ReadReceipts(ctx, ids)
	if err != nil {
		return nil, err
	}

	senders, err := s.userRepo.BulkByIDs(ctx, senderIDs)
	if err != nil {
		return nil, err
	}
	senderByID := make(map[int]models.UserSummary, len(senders))
	for _, u := range senders {
		senderByID[u.ID] = u.Summary()
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, models.MessageView{
			Message: m,
			Sender:  senderByID[m.SenderID],
			ReadBy:  receipts[m.ID],
		})
	}
	return views, nil
}

func (s *MessageService) projectOne(ctx context.Context, msg models.Message) (models.MessageView, error) {
	views, err := s.project(ctx, []models.Message{msg})
	if err != nil {
		return models.MessageView{}, err
	}
	return views[0], nil
}

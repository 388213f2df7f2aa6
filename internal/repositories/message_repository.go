package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"campus-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the message ledger: append, page, receipt, edit,
// soft delete. Rows are never physically removed.
type MessageRepository interface {
	Create(ctx context.Context, conversationID, senderID int, content, kind string, attachments models.Attachments) (models.Message, error)
	Get(ctx context.Context, messageID int) (models.Message, error)
	ListPage(ctx context.Context, conversationID int, opts models.MessagePageOptions) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID int, messageIDs []int, userID int) error
	ReadReceipts(ctx context.Context, messageIDs []int) (map[int][]models.ReadReceipt, error)
	Edit(ctx context.Context, messageID int, content string) (models.Message, error)
	SoftDelete(ctx context.Context, messageID int) error
}

// MessageRepo is a sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, content, kind, attachments, edited_at, is_deleted, deleted_at, created_at`

// Create appends a message and records the sender's own read receipt in the
// same transaction, so a sender is always present in its message's readBy.
func (r *MessageRepo) Create(ctx context.Context, conversationID, senderID int, content, kind string, attachments models.Attachments) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, content, kind, attachments)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING `+messageColumns,
		conversationID, senderID, content, kind, attachments).StructScan(&msg); err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)`,
		msg.ID, senderID); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Get fetches a message by id, including soft-deleted rows.
func (r *MessageRepo) Get(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListPage returns one page of non-deleted messages. Pages are taken
// newest-first (ties broken by id) and reversed so callers receive
// chronological order.
func (r *MessageRepo) ListPage(ctx context.Context, conversationID int, opts models.MessagePageOptions) ([]models.Message, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = 50
	}

	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
         WHERE conversation_id=$1 AND is_deleted = FALSE
         ORDER BY created_at DESC, id DESC
         LIMIT $2 OFFSET $3`, conversationID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkRead appends read receipts for the given messages. Receipts are
// set-add: re-reading is a no-op, and ids outside the conversation are
// ignored to block cross-conversation injection.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID int, messageIDs []int, userID int) error {
	if len(messageIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO message_reads (message_id, user_id)
         SELECT m.id, $3 FROM messages m
         WHERE m.id = ANY($2) AND m.conversation_id = $1
         ON CONFLICT (message_id, user_id) DO NOTHING`,
		conversationID, pq.Array(messageIDs), userID)
	return err
}

// ReadReceipts loads receipts for a batch of messages, keyed by message id.
func (r *MessageRepo) ReadReceipts(ctx context.Context, messageIDs []int) (map[int][]models.ReadReceipt, error) {
	result := make(map[int][]models.ReadReceipt, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}
	var receipts []models.ReadReceipt
	err := r.db.SelectContext(ctx, &receipts,
		`SELECT message_id, user_id, read_at FROM message_reads
         WHERE message_id = ANY($1) ORDER BY read_at, user_id`, pq.Array(messageIDs))
	if err != nil {
		return nil, err
	}
	for _, receipt := range receipts {
		result[receipt.MessageID] = append(result[receipt.MessageID], receipt)
	}
	return result, nil
}

// Edit replaces content and stamps edited_at. Soft-deleted messages are not
// editable.
func (r *MessageRepo) Edit(ctx context.Context, messageID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`UPDATE messages SET content=$2, edited_at=NOW()
         WHERE id=$1 AND is_deleted = FALSE
         RETURNING `+messageColumns, messageID, content).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDelete flags the row deleted; it stays in place for ordering and audit.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_deleted = TRUE, deleted_at = NOW() WHERE id=$1 AND is_deleted = FALSE`,
		messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

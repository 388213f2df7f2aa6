package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"campus-chat/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// CreateConversationParams describes a new group/broadcast conversation.
// The caller is responsible for including the creator in ParticipantIDs;
// the creator is always stored as an admin.
type CreateConversationParams struct {
	Kind           models.ConversationKind
	Name           string
	Description    string
	AllowedToPost  string
	CreatorID      int
	ParticipantIDs []int
	CourseCode     string
	CourseName     string
	University     string
}

// ConversationSummary is a conversation row joined with the per-viewer
// unread count and archive flag for list responses.
type ConversationSummary struct {
	models.Conversation
	UnreadCount int  `db:"unread_count"`
	Archived    bool `db:"archived"`
}

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	FindOrCreateDirect(ctx context.Context, userA, userB int) (models.Conversation, error)
	Create(ctx context.Context, params CreateConversationParams) (models.Conversation, error)
	Get(ctx context.Context, conversationID int) (models.Conversation, error)
	Participants(ctx context.Context, conversationID int) ([]models.Participant, error)
	IsParticipant(ctx context.Context, conversationID, userID int) (bool, error)
	IsAdmin(ctx context.Context, conversationID, userID int) (bool, error)
	AddParticipants(ctx context.Context, conversationID int, userIDs []int) error
	RemoveParticipant(ctx context.Context, conversationID, userID int) error
	ToggleArchive(ctx context.Context, conversationID, userID int) (bool, error)
	ListForUser(ctx context.Context, userID int, opts models.ConversationListOptions) ([]ConversationSummary, error)
	UpdateDetails(ctx context.Context, conversationID int, name, description, avatar *string) error
	TouchLastMessage(ctx context.Context, conversationID, messageID int) error
	IDsForUser(ctx context.Context, userID int) ([]int, error)
	FindCourseGroup(ctx context.Context, courseCode, university string) (models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, kind, name, description, avatar, allowed_to_post, last_message_id, last_activity, created_by, course_code, course_name, university, created_at`

// directKey canonicalizes a user pair so at most one direct conversation can
// exist between two users, regardless of argument order.
func directKey(userA, userB int) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

// FindOrCreateDirect returns the direct conversation between the pair,
// creating it if absent. The UNIQUE direct_key constraint makes concurrent
// creation from both sides converge on a single row: a conflicting insert
// returns no row and we fetch the winner instead.
func (r *ConversationRepo) FindOrCreateDirect(ctx context.Context, userA, userB int) (models.Conversation, error) {
	key := directKey(userA, userB)

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE direct_key=$1`, key)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	err = tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (kind, direct_key, created_by) VALUES ('direct', $1, $2)
         ON CONFLICT (direct_key) DO NOTHING
         RETURNING `+conversationColumns, key, userA).StructScan(&conv)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race; the other side's row is authoritative.
		tx.Rollback()
		err = r.db.GetContext(ctx, &conv,
			`SELECT `+conversationColumns+` FROM conversations WHERE direct_key=$1`, key)
		return conv, err
	}
	if err != nil {
		return models.Conversation{}, err
	}

	for _, userID := range []int{userA, userB} {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)`,
			conv.ID, userID); err != nil {
			return models.Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Create inserts a group or broadcast conversation and its members
// atomically. The creator's participant row carries is_admin.
func (r *ConversationRepo) Create(ctx context.Context, params CreateConversationParams) (models.Conversation, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	allowedToPost := params.AllowedToPost
	if allowedToPost == "" {
		allowedToPost = models.PostEveryone
	}

	var conv models.Conversation
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO conversations (kind, name, description, allowed_to_post, created_by, course_code, course_name, university)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
         RETURNING `+conversationColumns,
		params.Kind, params.Name, params.Description, allowedToPost,
		params.CreatorID, params.CourseCode, params.CourseName, params.University).StructScan(&conv); err != nil {
		return models.Conversation{}, err
	}

	for _, userID := range params.ParticipantIDs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id, is_admin) VALUES ($1, $2, $3)
             ON CONFLICT (conversation_id, user_id) DO NOTHING`,
			conv.ID, userID, userID == params.CreatorID); err != nil {
			return models.Conversation{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// Get fetches a conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// Participants returns membership rows in join order.
func (r *ConversationRepo) Participants(ctx context.Context, conversationID int) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.db.SelectContext(ctx, &participants,
		`SELECT conversation_id, user_id, is_admin, joined_at FROM conversation_participants
         WHERE conversation_id=$1 ORDER BY joined_at, user_id`, conversationID)
	return participants, err
}

// IsParticipant reports membership. A missing conversation is simply false.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`,
		conversationID, userID)
	return exists, err
}

// IsAdmin reports admin membership. A missing conversation is simply false.
func (r *ConversationRepo) IsAdmin(ctx context.Context, conversationID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2 AND is_admin)`,
		conversationID, userID)
	return exists, err
}

// AddParticipants inserts new members; users already present are a no-op.
func (r *ConversationRepo) AddParticipants(ctx context.Context, conversationID int, userIDs []int) error {
	for _, userID := range userIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)
             ON CONFLICT (conversation_id, user_id) DO NOTHING`,
			conversationID, userID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveParticipant deletes the membership row; any admin flag goes with it,
// so admins stay a subset of participants.
func (r *ConversationRepo) RemoveParticipant(ctx context.Context, conversationID, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID)
	return err
}

// ToggleArchive flips the viewer's archive flag and reports the new state.
func (r *ConversationRepo) ToggleArchive(ctx context.Context, conversationID, userID int) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM conversation_archives WHERE conversation_id=$1 AND user_id=$2`,
		conversationID, userID)
	if err != nil {
		return false, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if removed > 0 {
		return false, nil
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO conversation_archives (conversation_id, user_id) VALUES ($1, $2)
         ON CONFLICT (conversation_id, user_id) DO NOTHING`,
		conversationID, userID)
	return true, err
}

// ListForUser returns the viewer's conversations sorted by recent activity,
// with unread counts, optionally excluding archived ones. Only conversations
// the user participates in are visible.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID int, opts models.ConversationListOptions) ([]ConversationSummary, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = 20
	}

	query := `SELECT c.id, c.kind, c.name, c.description, c.avatar, c.allowed_to_post,
            c.last_message_id, c.last_activity, c.created_by, c.course_code, c.course_name,
            c.university, c.created_at,
            COALESCE(un.cnt, 0) AS unread_count,
            (ca.user_id IS NOT NULL) AS archived
        FROM conversations c
        INNER JOIN conversation_participants cp ON cp.conversation_id = c.id AND cp.user_id = $1
        LEFT JOIN conversation_archives ca ON ca.conversation_id = c.id AND ca.user_id = $1
        LEFT JOIN LATERAL (
            SELECT COUNT(*) AS cnt FROM messages m
            WHERE m.conversation_id = c.id AND m.is_deleted = FALSE AND m.sender_id <> $1
              AND NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = m.id AND mr.user_id = $1)
        ) un ON TRUE
        WHERE ($2 = '' OR c.kind = $2)
          AND ($3 OR ca.user_id IS NULL)
        ORDER BY c.last_activity DESC, c.id DESC
        LIMIT $4 OFFSET $5`

	var summaries []ConversationSummary
	err := r.db.SelectContext(ctx, &summaries, query,
		userID, string(opts.Kind), opts.IncludeArchived, limit, (page-1)*limit)
	return summaries, err
}

// UpdateDetails patches name/description/avatar; nil means leave unchanged.
func (r *ConversationRepo) UpdateDetails(ctx context.Context, conversationID int, name, description, avatar *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET
            name = COALESCE($2, name),
            description = COALESCE($3, description),
            avatar = COALESCE($4, avatar)
         WHERE id=$1`, conversationID, name, description, avatar)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// TouchLastMessage refreshes the denormalized last-message cache. Last write
// wins; a slightly stale value self-heals on the next send.
func (r *ConversationRepo) TouchLastMessage(ctx context.Context, conversationID, messageID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET last_message_id=$2, last_activity=NOW() WHERE id=$1`,
		conversationID, messageID)
	return err
}

// IDsForUser lists ids of every conversation the user participates in.
func (r *ConversationRepo) IDsForUser(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT conversation_id FROM conversation_participants WHERE user_id=$1`, userID)
	return ids, err
}

// FindCourseGroup locates the group conversation linked to a course at a
// university, if one exists.
func (r *ConversationRepo) FindCourseGroup(ctx context.Context, courseCode, university string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations
         WHERE kind='group' AND course_code=$1 AND university=$2
         ORDER BY id LIMIT 1`, courseCode, university)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

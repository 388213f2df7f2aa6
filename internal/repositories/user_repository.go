package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"campus-chat/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository resolves identities and reads user display data. User
// records are owned by the identity integration; the chat core only reads.
type UserRepository interface {
	GetByID(ctx context.Context, userID int) (models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (models.User, error)
	BulkByIDs(ctx context.Context, userIDs []int) ([]models.User, error)
	Search(ctx context.Context, query, university string, excludeUserID int, limit int) ([]models.User, error)
	ClassmatesForCourse(ctx context.Context, courseCode, university string, excludeUserID int, limit int) ([]int, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, external_id, name, email, profile_picture, university, major, year, created_at`

// GetByID fetches a user by internal id.
func (r *UserRepo) GetByID(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetByExternalID resolves an identity-provider id to the internal record.
func (r *UserRepo) GetByExternalID(ctx context.Context, externalID string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE external_id=$1`, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// BulkByIDs fetches multiple users in one query. Missing ids are skipped.
func (r *UserRepo) BulkByIDs(ctx context.Context, userIDs []int) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(userIDs))
	return users, err
}

// Search matches name or email case-insensitively, optionally scoped to a
// university and excluding the requester.
func (r *UserRepo) Search(ctx context.Context, query, university string, excludeUserID int, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users
         WHERE (name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
           AND ($2 = '' OR university = $2)
           AND ($3 = 0 OR id <> $3)
         ORDER BY name, id
         LIMIT $4`, query, university, excludeUserID, limit)
	return users, err
}

// ClassmatesForCourse finds users at the given university whose uploaded
// schedules include the course. Used to seed course groups.
func (r *UserRepo) ClassmatesForCourse(ctx context.Context, courseCode, university string, excludeUserID int, limit int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT u.id FROM users u
         INNER JOIN schedule_courses sc ON sc.user_id = u.id
         WHERE sc.course_code = $1 AND u.university = $2 AND u.id <> $3
         ORDER BY u.id
         LIMIT $4`, courseCode, university, excludeUserID, limit)
	return ids, err
}

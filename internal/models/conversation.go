package models

import "time"

// ConversationKind enumerates the supported conversation shapes.
type ConversationKind string

const (
	KindDirect    ConversationKind = "direct"
	KindGroup     ConversationKind = "group"
	KindBroadcast ConversationKind = "broadcast"
)

// Valid reports whether the kind is one of the known values.
func (k ConversationKind) Valid() bool {
	return k == KindDirect || k == KindGroup || k == KindBroadcast
}

// Posting policies for broadcast conversations.
const (
	PostEveryone = "everyone"
	PostAdmins   = "admins"
)

// Conversation is the persisted conversation row. Participants and admins
// live in conversation_participants; admins are participant rows flagged
// is_admin, which keeps admins a subset of participants by construction.
type Conversation struct {
	ID            int              `db:"id" json:"id"`
	Kind          ConversationKind `db:"kind" json:"type"`
	Name          string           `db:"name" json:"name,omitempty"`
	Description   string           `db:"description" json:"description,omitempty"`
	Avatar        string           `db:"avatar" json:"avatar,omitempty"`
	AllowedToPost string           `db:"allowed_to_post" json:"allowed_to_post"`
	LastMessageID *int             `db:"last_message_id" json:"last_message_id,omitempty"`
	LastActivity  time.Time        `db:"last_activity" json:"last_activity"`
	CreatedBy     int              `db:"created_by" json:"created_by"`
	CourseCode    string           `db:"course_code" json:"course_code,omitempty"`
	CourseName    string           `db:"course_name" json:"course_name,omitempty"`
	University    string           `db:"university" json:"university,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// Participant is a membership row. Insertion order (joined_at, then user id)
// is preserved for display.
type Participant struct {
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	UserID         int       `db:"user_id" json:"user_id"`
	IsAdmin        bool      `db:"is_admin" json:"is_admin"`
	JoinedAt       time.Time `db:"joined_at" json:"joined_at"`
}

// ConversationView is the read-side projection returned to clients:
// the conversation row with participant display fields joined on.
type ConversationView struct {
	Conversation
	Participants []UserSummary `json:"participants"`
	AdminIDs     []int         `json:"admins"`
	LastMessage  *Message      `json:"last_message,omitempty"`
	UnreadCount  int           `json:"unread_count"`
	Archived     bool          `json:"archived"`
}

// ConversationListOptions controls ListForUser pagination and filtering.
type ConversationListOptions struct {
	Page            int
	Limit           int
	Kind            ConversationKind
	IncludeArchived bool
}

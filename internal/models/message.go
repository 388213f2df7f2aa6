package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// MaxContentLength bounds message content.
const MaxContentLength = 1000

// Message kinds.
const (
	MessageText  = "text"
	MessageImage = "image"
	MessageFile  = "file"
)

// Attachment describes one uploaded file referenced by a message.
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// Attachments is stored as a JSONB column.
type Attachments []Attachment

// Value implements driver.Valuer.
func (a Attachments) Value() (driver.Value, error) {
	if len(a) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *Attachments) Scan(src any) error {
	if src == nil {
		*a = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return errors.New("attachments: unsupported scan type")
	}
}

// Message is the persisted message row. Soft-deleted rows stay in place for
// ordering and audit; reads exclude them.
type Message struct {
	ID             int         `db:"id" json:"id"`
	ConversationID int         `db:"conversation_id" json:"conversation_id"`
	SenderID       int         `db:"sender_id" json:"sender_id"`
	Content        string      `db:"content" json:"content"`
	Kind           string      `db:"kind" json:"type"`
	Attachments    Attachments `db:"attachments" json:"attachments"`
	EditedAt       *time.Time  `db:"edited_at" json:"edited_at,omitempty"`
	IsDeleted      bool        `db:"is_deleted" json:"is_deleted"`
	DeletedAt      *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
}

// ReadReceipt records that a user has read a message. Each user appears at
// most once per message.
type ReadReceipt struct {
	MessageID int       `db:"message_id" json:"-"`
	UserID    int       `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

// MessageView joins sender display fields and read receipts onto a message
// for responses. Never persisted.
type MessageView struct {
	Message
	Sender UserSummary   `json:"sender"`
	ReadBy []ReadReceipt `json:"read_by"`
}

// MessagePageOptions controls message pagination. Storage order is
// newest-first; pages are returned to callers in chronological order.
type MessagePageOptions struct {
	Page  int
	Limit int
}

package models

import "time"

// User is owned by the identity provider integration; the chat core only
// references users by id and reads display fields for projections.
type User struct {
	ID             int       `db:"id" json:"id"`
	ExternalID     string    `db:"external_id" json:"external_id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	ProfilePicture string    `db:"profile_picture" json:"profile_picture,omitempty"`
	University     string    `db:"university" json:"university,omitempty"`
	Major          string    `db:"major" json:"major,omitempty"`
	Year           int       `db:"year" json:"year,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// UserSummary is the read-side projection embedded in conversation and
// message responses. Never persisted.
type UserSummary struct {
	ID             int    `db:"id" json:"id"`
	ExternalID     string `db:"external_id" json:"external_id"`
	Name           string `db:"name" json:"name"`
	Email          string `db:"email" json:"email"`
	ProfilePicture string `db:"profile_picture" json:"profile_picture,omitempty"`
	University     string `db:"university" json:"university,omitempty"`
}

// Summary projects a full user record down to its display fields.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		ExternalID:     u.ExternalID,
		Name:           u.Name,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		University:     u.University,
	}
}

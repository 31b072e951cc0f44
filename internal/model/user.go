package model

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the format of PasswordMeta.LastReminderSent.
const DateLayout = "2006-01-02"

// User is the host's user record. Read-only here.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
}

// PasswordMeta is the policy state attached to a user.
type PasswordMeta struct {
	UserID             uuid.UUID  `json:"user_id" db:"user_id"`
	PasswordHistory    []string   `json:"-" db:"-"`
	LastPasswordUpdate *time.Time `json:"last_password_update,omitempty" db:"last_password_update"`
	LastReminderSent   string     `json:"last_reminder_sent,omitempty" db:"-"`
}

// UserWithMeta pairs a user with its policy state for a reminder pass.
type UserWithMeta struct {
	User
	Meta PasswordMeta
}

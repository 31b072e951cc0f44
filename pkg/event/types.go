package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies a host hook or internal trigger.
type Kind string

const (
	KindProfileUpdateValidate Kind = "profile_update.validate"
	KindPasswordResetValidate Kind = "password_reset.validate"
	KindProfileUpdated        Kind = "profile_update.commit"
	KindUserRegistered        Kind = "user.registered"
	KindDailyReminder         Kind = "reminder.daily"
	KindActivate              Kind = "lifecycle.activate"
	KindDeactivate            Kind = "lifecycle.deactivate"
)

// Event carries the payload of a hook. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind            Kind
	UserID          uuid.UUID
	IsUpdate        bool
	Password        string
	PasswordConfirm string
	Errors          *ErrorCollector
	OccurredAt      time.Time
}

// FieldError is a human-readable rejection collected during validation.
type FieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCollector accumulates validation rejections for the host's form.
type ErrorCollector struct {
	items []FieldError
}

func (c *ErrorCollector) Add(code, message string) {
	c.items = append(c.items, FieldError{Code: code, Message: message})
}

func (c *ErrorCollector) Items() []FieldError {
	out := make([]FieldError, len(c.items))
	copy(out, c.items)
	return out
}

func (c *ErrorCollector) Empty() bool {
	return len(c.items) == 0
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/passpolicy/internal/model"
)

var (
	// ErrSettingsNotFound is returned when no settings record has been stored yet.
	ErrSettingsNotFound = errors.New("settings not found")
	// ErrUserNotFound is returned when the host user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// All repository interfaces in one file
type (
	// SettingsRepository stores the single policy settings record.
	SettingsRepository interface {
		Get(ctx context.Context) (model.Settings, error)
		Save(ctx context.Context, settings model.Settings) error
		// CreateIfAbsent stores settings only when no record exists and
		// reports whether it did.
		CreateIfAbsent(ctx context.Context, settings model.Settings) (bool, error)
	}

	// UserRepository reads the host's users.
	UserRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		ListWithMeta(ctx context.Context) ([]model.UserWithMeta, error)
	}

	// PasswordMetaRepository reads and writes per-user policy state.
	PasswordMetaRepository interface {
		GetHistory(ctx context.Context, userID uuid.UUID) ([]string, error)
		SaveHistory(ctx context.Context, userID uuid.UUID, history []string, updatedAt time.Time) error
		MarkReminderSent(ctx context.Context, userID uuid.UUID, date string) error
	}
)

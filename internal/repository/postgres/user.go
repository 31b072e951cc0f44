package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/passpolicy/internal/model"
	"github.com/jwalitptl/passpolicy/internal/repository"
)

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

// userMetaRow is the joined users/user_password_meta row.
type userMetaRow struct {
	model.User
	History            pq.StringArray `db:"password_history"`
	LastPasswordUpdate sql.NullTime   `db:"last_password_update"`
	LastReminderSent   sql.NullString `db:"last_reminder_sent"`
}

func (row userMetaRow) toModel() model.UserWithMeta {
	out := model.UserWithMeta{
		User: row.User,
		Meta: model.PasswordMeta{
			UserID:          row.ID,
			PasswordHistory: []string(row.History),
		},
	}
	if row.LastPasswordUpdate.Valid {
		t := row.LastPasswordUpdate.Time
		out.Meta.LastPasswordUpdate = &t
	}
	if row.LastReminderSent.Valid {
		out.Meta.LastReminderSent = row.LastReminderSent.String
	}
	return out
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `
		SELECT id, email, display_name, password_hash
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *userRepository) ListWithMeta(ctx context.Context) ([]model.UserWithMeta, error) {
	query := `
		SELECT u.id, u.email, u.display_name, u.password_hash,
			   m.password_history,
			   m.last_password_update,
			   to_char(m.last_reminder_sent, 'YYYY-MM-DD') AS last_reminder_sent
		FROM users u
		LEFT JOIN user_password_meta m ON m.user_id = u.id
		WHERE u.deleted_at IS NULL
		ORDER BY u.id
	`

	var rows []userMetaRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]model.UserWithMeta, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toModel())
	}
	return users, nil
}

type passwordMetaRepository struct {
	db *sqlx.DB
}

func NewPasswordMetaRepository(db *sqlx.DB) repository.PasswordMetaRepository {
	return &passwordMetaRepository{db: db}
}

func (r *passwordMetaRepository) GetHistory(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := `SELECT password_history FROM user_password_meta WHERE user_id = $1`

	var history pq.StringArray
	if err := r.db.GetContext(ctx, &history, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get password history: %w", err)
	}
	return []string(history), nil
}

func (r *passwordMetaRepository) SaveHistory(ctx context.Context, userID uuid.UUID, history []string, updatedAt time.Time) error {
	query := `
		INSERT INTO user_password_meta (user_id, password_history, last_password_update, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			password_history = EXCLUDED.password_history,
			last_password_update = EXCLUDED.last_password_update,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, userID, pq.Array(history), updatedAt); err != nil {
		return fmt.Errorf("failed to save password history: %w", err)
	}
	return nil
}

func (r *passwordMetaRepository) MarkReminderSent(ctx context.Context, userID uuid.UUID, date string) error {
	query := `
		INSERT INTO user_password_meta (user_id, last_reminder_sent, updated_at)
		VALUES ($1, $2::date, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			last_reminder_sent = EXCLUDED.last_reminder_sent,
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, userID, date); err != nil {
		return fmt.Errorf("failed to record reminder: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/passpolicy/internal/model"
	"github.com/jwalitptl/passpolicy/internal/repository"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func TestMarkReminderSentOnlyTouchesReminderDate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPasswordMetaRepository(db)
	userID := uuid.New()

	// The conflict branch must leave password_history and
	// last_password_update alone.
	mock.ExpectExec(`INSERT INTO user_password_meta \(user_id, last_reminder_sent, updated_at\) VALUES \(\$1, \$2::date, NOW\(\)\) ON CONFLICT \(user_id\) DO UPDATE SET last_reminder_sent = EXCLUDED\.last_reminder_sent, updated_at = NOW\(\)$`).
		WithArgs(userID, "2026-03-20").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkReminderSent(context.Background(), userID, "2026-03-20"))
}

func TestMarkReminderSentWrapsError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPasswordMetaRepository(db)

	mock.ExpectExec(`INSERT INTO user_password_meta`).WillReturnError(errors.New("connection reset"))

	err := repo.MarkReminderSent(context.Background(), uuid.New(), "2026-03-20")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record reminder")
}

func TestSaveHistoryUpsertsHistoryAndUpdateTime(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPasswordMetaRepository(db)
	userID := uuid.New()
	history := []string{"$2a$10$new", "$2a$10$old"}
	updatedAt := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO user_password_meta \(user_id, password_history, last_password_update, updated_at\) .* ON CONFLICT \(user_id\) DO UPDATE SET password_history = EXCLUDED\.password_history, last_password_update = EXCLUDED\.last_password_update, updated_at = NOW\(\)$`).
		WithArgs(userID, pq.Array(history), updatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveHistory(context.Background(), userID, history, updatedAt))
}

func TestGetHistoryWithoutRowIsEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPasswordMetaRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT password_history FROM user_password_meta WHERE user_id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"password_history"}))

	history, err := repo.GetHistory(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestGetHistoryDecodesArray(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPasswordMetaRepository(db)
	userID := uuid.New()

	mock.ExpectQuery(`SELECT password_history FROM user_password_meta`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"password_history"}).AddRow("{h3,h2,h1}"))

	history, err := repo.GetHistory(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"h3", "h2", "h1"}, history)
}

func TestListWithMetaMapsJoinedRows(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	withMeta := uuid.New()
	withoutMeta := uuid.New()
	updated := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "email", "display_name", "password_hash",
		"password_history", "last_password_update", "last_reminder_sent",
	}).
		AddRow(withMeta.String(), "ada@example.com", "Ada", "$2a$10$x", "{h1}", updated, "2026-03-19").
		AddRow(withoutMeta.String(), "bob@example.com", "Bob", "$2a$10$y", nil, nil, nil)

	mock.ExpectQuery(`to_char\(m\.last_reminder_sent, 'YYYY-MM-DD'\) AS last_reminder_sent .* LEFT JOIN user_password_meta m`).
		WillReturnRows(rows)

	users, err := repo.ListWithMeta(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, withMeta, users[0].ID)
	assert.Equal(t, withMeta, users[0].Meta.UserID)
	assert.Equal(t, "Ada", users[0].DisplayName)
	assert.Equal(t, []string{"h1"}, users[0].Meta.PasswordHistory)
	require.NotNil(t, users[0].Meta.LastPasswordUpdate)
	assert.True(t, updated.Equal(*users[0].Meta.LastPasswordUpdate))
	assert.Equal(t, "2026-03-19", users[0].Meta.LastReminderSent)

	assert.Equal(t, withoutMeta, users[1].ID)
	assert.Nil(t, users[1].Meta.LastPasswordUpdate)
	assert.Empty(t, users[1].Meta.LastReminderSent)
	assert.Empty(t, users[1].Meta.PasswordHistory)
}

func TestGetUserNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`FROM users WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "display_name", "password_hash"}))

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestSettingsCreateIfAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	payload, err := json.Marshal(model.DefaultSettings())
	require.NoError(t, err)

	mock.ExpectExec(`ON CONFLICT \(name\) DO NOTHING`).
		WithArgs(SettingsName, payload).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`ON CONFLICT \(name\) DO NOTHING`).
		WithArgs(SettingsName, payload).
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.CreateIfAbsent(context.Background(), model.DefaultSettings())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(context.Background(), model.DefaultSettings())
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSettingsGetMissingRecord(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(`SELECT value FROM policy_settings WHERE name = \$1`).
		WithArgs(SettingsName).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	_, err := repo.Get(context.Background())
	assert.ErrorIs(t, err, repository.ErrSettingsNotFound)
}

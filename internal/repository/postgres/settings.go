package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/passpolicy/internal/model"
	"github.com/jwalitptl/passpolicy/internal/repository"
)

// SettingsName is the key of the policy record in policy_settings.
const SettingsName = "password_policy"

type settingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) repository.SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context) (model.Settings, error) {
	query := `SELECT value FROM policy_settings WHERE name = $1`

	var raw []byte
	if err := r.db.GetContext(ctx, &raw, query, SettingsName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Settings{}, repository.ErrSettingsNotFound
		}
		return model.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	var settings model.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return model.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return settings, nil
}

func (r *settingsRepository) Save(ctx context.Context, settings model.Settings) error {
	query := `
		INSERT INTO policy_settings (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, SettingsName, payload); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (r *settingsRepository) CreateIfAbsent(ctx context.Context, settings model.Settings) (bool, error) {
	query := `
		INSERT INTO policy_settings (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO NOTHING
	`

	payload, err := json.Marshal(settings)
	if err != nil {
		return false, fmt.Errorf("failed to encode settings: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, SettingsName, payload)
	if err != nil {
		return false, fmt.Errorf("failed to seed settings: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/passpolicy/internal/model"
	"github.com/jwalitptl/passpolicy/internal/policy"
	"github.com/jwalitptl/passpolicy/internal/repository"
	"github.com/jwalitptl/passpolicy/pkg/logger"
	"github.com/jwalitptl/passpolicy/pkg/messaging"
)

const cacheKey = "settings"

// MessageTypeSettingsChanged tells other processes to drop their cached
// settings.
const MessageTypeSettingsChanged = "password.settings_changed"

// SettingsChanged is the payload of MessageTypeSettingsChanged.
type SettingsChanged struct {
	Origin  string    `json:"origin"`
	SavedAt time.Time `json:"saved_at"`
}

// Provider is what policy adapters need from the settings store.
type Provider interface {
	Get(ctx context.Context) (model.Settings, error)
}

type Service struct {
	repo   repository.SettingsRepository
	cache  *cache.Cache
	logger *logger.Logger

	// origin identifies this process in change notifications.
	origin    string
	publisher messaging.Publisher
	topic     string
}

func NewService(repo repository.SettingsRepository, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		repo:   repo,
		cache:  cache.New(ttl, 2*ttl),
		logger: log,
		origin: uuid.NewString(),
	}
}

// PublishChanges makes Save announce new settings on topic so other
// processes drop their cached copy.
func (s *Service) PublishChanges(publisher messaging.Publisher, topic string) {
	s.publisher = publisher
	s.topic = topic
}

// Invalidate drops the cached settings.
func (s *Service) Invalidate() {
	s.cache.Delete(cacheKey)
}

// Listen invalidates the cache whenever another process announces a
// save on topic. It blocks until ctx is done.
func (s *Service) Listen(ctx context.Context, subscriber messaging.Subscriber, topic string) error {
	return subscriber.Subscribe(ctx, topic, func(_ context.Context, payload []byte) {
		var msg struct {
			Type    string          `json:"type"`
			Payload SettingsChanged `json:"payload"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logger.ZL.Warn().Err(err).Str("topic", topic).Msg("Ignoring malformed settings message")
			return
		}
		if msg.Type != MessageTypeSettingsChanged || msg.Payload.Origin == s.origin {
			return
		}
		s.Invalidate()
		s.logger.ZL.Debug().Str("origin", msg.Payload.Origin).Msg("Settings cache invalidated")
	})
}

// Get returns the stored settings, or defaults when none are stored. A
// stored record that fails validation is treated as absent.
func (s *Service) Get(ctx context.Context) (model.Settings, error) {
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.(model.Settings), nil
	}

	settings, err := s.repo.Get(ctx)
	switch {
	case errors.Is(err, repository.ErrSettingsNotFound):
		settings = model.DefaultSettings()
	case err != nil:
		return model.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	default:
		if vErr := policy.CheckSettings(settings); vErr != nil {
			s.logger.ZL.Warn().Err(vErr).Msg("Stored settings are invalid, using defaults")
			settings = model.DefaultSettings()
		}
	}

	s.cache.SetDefault(cacheKey, settings)
	return settings, nil
}

// Save validates raw and replaces the stored record.
func (s *Service) Save(ctx context.Context, raw policy.RawSettings) (model.Settings, error) {
	settings, err := policy.Validate(raw)
	if err != nil {
		return model.Settings{}, err
	}

	if err := s.repo.Save(ctx, settings); err != nil {
		return model.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	s.Invalidate()
	s.announce(ctx)

	s.logger.ZL.Info().
		Bool("force_password_reset", settings.ForcePasswordReset).
		Bool("disallow_last_password", settings.DisallowLastPassword).
		Int("password_history_count", settings.PasswordHistoryCount).
		Bool("enable_reminder", settings.EnableReminder).
		Int("expiry_days", settings.ExpiryDays).
		Int("reminder_days", settings.ReminderDays).
		Msg("Settings saved")
	return settings, nil
}

// SeedDefaults stores the default record if nothing is stored yet.
func (s *Service) SeedDefaults(ctx context.Context) (bool, error) {
	created, err := s.repo.CreateIfAbsent(ctx, model.DefaultSettings())
	if err != nil {
		return false, fmt.Errorf("failed to seed settings: %w", err)
	}
	if created {
		s.Invalidate()
	}
	return created, nil
}

// announce is best effort; other processes still converge once their
// cache entry expires.
func (s *Service) announce(ctx context.Context) {
	if s.publisher == nil || s.topic == "" {
		return
	}
	msg := messaging.Message{
		Type:    MessageTypeSettingsChanged,
		Payload: SettingsChanged{Origin: s.origin, SavedAt: time.Now().UTC()},
	}
	if err := s.publisher.Publish(ctx, s.topic, msg); err != nil {
		s.logger.Error(err, "Failed to publish settings change")
	}
}

package password

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/passpolicy/internal/model"
	"github.com/jwalitptl/passpolicy/internal/policy"
	"github.com/jwalitptl/passpolicy/internal/repository"
	"github.com/jwalitptl/passpolicy/internal/service/settings"
	"github.com/jwalitptl/passpolicy/pkg/event"
	"github.com/jwalitptl/passpolicy/pkg/logger"
	"github.com/jwalitptl/passpolicy/pkg/metrics"
)

// CodePreviouslyUsed is the rejection code shown to the host form.
const CodePreviouslyUsed = "password_previously_used"

// Hook labels used in logs and metrics.
const (
	hookProfileValidate = "profile_update_validate"
	hookResetValidate   = "password_reset_validate"
	hookProfileCommit   = "profile_update_commit"
	hookUserRegistered  = "user_registered"
)

// ReuseMessage is the user-facing rejection. It never says which stored
// password matched.
func ReuseMessage(historyCount int) string {
	return fmt.Sprintf("You cannot reuse one of your last %d passwords. Please choose a different password.", historyCount)
}

type Service struct {
	settings settings.Provider
	users    repository.UserRepository
	meta     repository.PasswordMetaRepository
	verify   func(plaintext, hash string) bool
	now      func() time.Time
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewService(
	settingsProvider settings.Provider,
	users repository.UserRepository,
	meta repository.PasswordMetaRepository,
	verify func(plaintext, hash string) bool,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		settings: settingsProvider,
		users:    users,
		meta:     meta,
		verify:   verify,
		now:      time.Now,
		logger:   log.With("component", "password_hooks"),
		metrics:  m,
	}
}

// Subscribe registers the password hooks on the table builder.
func (s *Service) Subscribe(b *event.Builder) {
	b.On(event.KindProfileUpdateValidate, func(ctx context.Context, evt *event.Event) error {
		return s.ValidateProfileUpdate(ctx, evt.UserID, evt.IsUpdate, evt.Password, evt.PasswordConfirm, evt.Errors)
	})
	b.On(event.KindPasswordResetValidate, func(ctx context.Context, evt *event.Event) error {
		return s.ValidatePasswordReset(ctx, evt.UserID, evt.Password, evt.Errors)
	})
	b.On(event.KindProfileUpdated, func(ctx context.Context, evt *event.Event) error {
		return s.StoreOnUpdate(ctx, evt.UserID)
	})
	b.On(event.KindUserRegistered, func(ctx context.Context, evt *event.Event) error {
		return s.InitializeForNewUser(ctx, evt.UserID)
	})
}

// ValidateProfileUpdate rejects a profile update whose new password is in
// the user's history. Updates that do not set both password fields are
// not password changes and are skipped.
func (s *Service) ValidateProfileUpdate(ctx context.Context, userID uuid.UUID, isUpdate bool, pass1, pass2 string, errs *event.ErrorCollector) error {
	if !isUpdate || pass1 == "" || pass2 == "" {
		s.observe(hookProfileValidate, "skipped")
		return nil
	}
	return s.checkHistory(ctx, hookProfileValidate, userID, pass1, errs)
}

// ValidatePasswordReset applies the same check to the reset form.
func (s *Service) ValidatePasswordReset(ctx context.Context, userID uuid.UUID, pass1 string, errs *event.ErrorCollector) error {
	if pass1 == "" {
		s.observe(hookResetValidate, "skipped")
		return nil
	}
	return s.checkHistory(ctx, hookResetValidate, userID, pass1, errs)
}

func (s *Service) checkHistory(ctx context.Context, hook string, userID uuid.UUID, plaintext string, errs *event.ErrorCollector) error {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !cfg.HistoryEnforced() {
		s.observe(hook, "disabled")
		return nil
	}

	history, err := s.meta.GetHistory(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load password history: %w", err)
	}

	if policy.IsReused(plaintext, history, s.verify) {
		errs.Add(CodePreviouslyUsed, ReuseMessage(cfg.PasswordHistoryCount))
		s.logger.ZL.Info().Str("hook", hook).Str("user_id", userID.String()).Msg("Password reuse rejected")
		s.observe(hook, "rejected")
		return nil
	}

	s.observe(hook, "accepted")
	return nil
}

// StoreOnUpdate records the user's current hash after a profile update.
// Gated on both force_password_reset and disallow_last_password.
func (s *Service) StoreOnUpdate(ctx context.Context, userID uuid.UUID) error {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !cfg.HistoryEnforced() {
		s.observe(hookProfileCommit, "disabled")
		return nil
	}
	return s.record(ctx, hookProfileCommit, userID, cfg)
}

// InitializeForNewUser records a new user's first hash. Gated on
// force_password_reset alone; disallow_last_password is not consulted
// here, unlike StoreOnUpdate.
func (s *Service) InitializeForNewUser(ctx context.Context, userID uuid.UUID) error {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !cfg.ForcePasswordReset {
		s.observe(hookUserRegistered, "disabled")
		return nil
	}
	return s.record(ctx, hookUserRegistered, userID, cfg)
}

func (s *Service) record(ctx context.Context, hook string, userID uuid.UUID, cfg model.Settings) error {
	user, err := s.users.Get(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.logger.ZL.Warn().Str("hook", hook).Str("user_id", userID.String()).Msg("User not found, nothing recorded")
		s.observe(hook, "user_not_found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	history, err := s.meta.GetHistory(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load password history: %w", err)
	}

	updated := policy.RecordChange(history, user.PasswordHash, cfg.PasswordHistoryCount)
	if !policy.HistoryChanged(history, updated) {
		s.observe(hook, "duplicate")
		return nil
	}

	if err := s.meta.SaveHistory(ctx, userID, updated, s.now()); err != nil {
		return fmt.Errorf("failed to store password history: %w", err)
	}

	s.logger.ZL.Info().Str("hook", hook).Str("user_id", userID.String()).Int("history_len", len(updated)).Msg("Password hash recorded")
	s.observe(hook, "recorded")
	return nil
}

func (s *Service) observe(hook, decision string) {
	if s.metrics == nil {
		return
	}
	s.metrics.HookDecisions.WithLabelValues(hook, decision).Inc()
}

package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/passpolicy/internal/email"
	"github.com/jwalitptl/passpolicy/internal/model"
	"github.com/jwalitptl/passpolicy/internal/policy"
	"github.com/jwalitptl/passpolicy/internal/repository"
	"github.com/jwalitptl/passpolicy/internal/service/settings"
	"github.com/jwalitptl/passpolicy/pkg/event"
	"github.com/jwalitptl/passpolicy/pkg/logger"
	"github.com/jwalitptl/passpolicy/pkg/messaging"
	"github.com/jwalitptl/passpolicy/pkg/metrics"
)

// MessageTypePassCompleted is the broker message type published after a pass.
const MessageTypePassCompleted = "password.reminder_pass_completed"

// ErrPassAlreadyRunning means another process holds today's pass lock.
var ErrPassAlreadyRunning = errors.New("reminder pass already running for today")

// EmailSender adapts the mail service to the runner.
type EmailSender struct {
	Mail email.Service
}

func (s EmailSender) SendReminder(ctx context.Context, user model.User, daysLeft int) error {
	return s.Mail.SendPasswordExpiryReminder(ctx, user.Email, user.DisplayName, daysLeft)
}

type Config struct {
	LockTTL time.Duration
	Topic   string
}

type Service struct {
	settings  settings.Provider
	users     repository.UserRepository
	runner    *Runner
	locker    messaging.Locker
	publisher messaging.Publisher
	config    Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	settingsProvider settings.Provider,
	users repository.UserRepository,
	runner *Runner,
	locker messaging.Locker,
	publisher messaging.Publisher,
	config Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if config.LockTTL <= 0 {
		config.LockTTL = 23 * time.Hour
	}
	return &Service{
		settings:  settingsProvider,
		users:     users,
		runner:    runner,
		locker:    locker,
		publisher: publisher,
		config:    config,
		logger:    log.With("component", "reminders"),
		metrics:   m,
	}
}

// Subscribe registers the daily trigger on the table builder.
func (s *Service) Subscribe(b *event.Builder) {
	b.On(event.KindDailyReminder, func(ctx context.Context, evt *event.Event) error {
		now := evt.OccurredAt
		if now.IsZero() {
			now = time.Now()
		}
		_, err := s.RunOnce(ctx, now)
		if errors.Is(err, ErrPassAlreadyRunning) {
			return nil
		}
		return err
	})
}

// RunOnce performs today's reminder pass. Failing to enumerate users is
// returned; the next trigger retries.
func (s *Service) RunOnce(ctx context.Context, now time.Time) (model.RunSummary, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		s.countPass("error")
		return model.RunSummary{}, err
	}
	if !cfg.RemindersEnabled() {
		s.logger.ZL.Debug().Msg("Reminder feature disabled")
		s.countPass("disabled")
		return model.RunSummary{}, nil
	}

	today := policy.Today(now)
	release, err := s.locker.Acquire(ctx, "password_policy:reminder_pass:"+today, s.config.LockTTL)
	if errors.Is(err, messaging.ErrLockHeld) {
		s.logger.ZL.Info().Str("date", today).Msg("Reminder pass already taken by another worker")
		s.countPass("skipped")
		return model.RunSummary{}, ErrPassAlreadyRunning
	}
	if err != nil {
		s.countPass("error")
		return model.RunSummary{}, fmt.Errorf("failed to acquire reminder lock: %w", err)
	}

	runID := uuid.New()
	log := s.logger.With("run_id", runID.String())
	log.ZL.Info().Int("expiry_days", cfg.ExpiryDays).Int("reminder_days", cfg.ReminderDays).Msg("Reminder pass started")

	users, err := s.users.ListWithMeta(ctx)
	if err != nil {
		// Let the next trigger retry today's pass.
		if relErr := release(ctx); relErr != nil {
			log.Error(relErr, "Failed to release reminder lock")
		}
		s.countPass("error")
		return model.RunSummary{}, fmt.Errorf("failed to enumerate users: %w", err)
	}

	var timer *prometheus.Timer
	if s.metrics != nil {
		timer = prometheus.NewTimer(s.metrics.ReminderPassDuration)
	}
	started := time.Now()
	summary := s.runner.Run(ctx, users, cfg, now)
	finished := time.Now()
	if timer != nil {
		timer.ObserveDuration()
	}

	log.ZL.Info().
		Int("evaluated", summary.Evaluated).
		Int("sent", summary.Sent).
		Int("failed", summary.Failed).
		Int("write_failed", summary.WriteFailed).
		Msg("Reminder pass finished")

	s.record(summary)
	s.publish(ctx, log, model.ReminderPassCompleted{
		RunID:      runID,
		Date:       today,
		Summary:    summary,
		StartedAt:  started,
		FinishedAt: finished,
	})
	return summary, nil
}

func (s *Service) publish(ctx context.Context, log *logger.Logger, payload model.ReminderPassCompleted) {
	if s.publisher == nil || s.config.Topic == "" {
		return
	}
	msg := messaging.Message{Type: MessageTypePassCompleted, Payload: payload}
	if err := s.publisher.Publish(ctx, s.config.Topic, msg); err != nil {
		log.Error(err, "Failed to publish reminder pass summary")
	}
}

func (s *Service) record(summary model.RunSummary) {
	if s.metrics == nil {
		return
	}
	s.metrics.ReminderPasses.WithLabelValues("completed").Inc()
	s.metrics.RemindersEvaluated.Add(float64(summary.Evaluated))
	s.metrics.RemindersSent.Add(float64(summary.Sent))
	s.metrics.RemindersFailed.Add(float64(summary.Failed))
	s.metrics.ReminderWriteFailed.Add(float64(summary.WriteFailed))
}

func (s *Service) countPass(outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.ReminderPasses.WithLabelValues(outcome).Inc()
}

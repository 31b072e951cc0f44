package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/passpolicy/internal/model"
	"github.com/jwalitptl/passpolicy/internal/policy"
	"github.com/jwalitptl/passpolicy/pkg/logger"
)

// Sender delivers one reminder.
type Sender interface {
	SendReminder(ctx context.Context, user model.User, daysLeft int) error
}

// MetaWriter records that a reminder went out.
type MetaWriter interface {
	MarkReminderSent(ctx context.Context, userID uuid.UUID, date string) error
}

// Runner performs one reminder pass over a supplied user list.
type Runner struct {
	sender Sender
	meta   MetaWriter
	logger *logger.Logger
}

func NewRunner(sender Sender, meta MetaWriter, log *logger.Logger) *Runner {
	return &Runner{sender: sender, meta: meta, logger: log}
}

// Run evaluates every user and sends the reminders that are due. A
// failure for one user is logged and counted; it never stops the pass.
func (r *Runner) Run(ctx context.Context, users []model.UserWithMeta, settings model.Settings, now time.Time) model.RunSummary {
	var summary model.RunSummary
	if !settings.RemindersEnabled() {
		return summary
	}

	today := policy.Today(now)
	for _, u := range users {
		summary.Evaluated++

		if !policy.IsReminderDue(u.Meta.LastPasswordUpdate, u.Meta.LastReminderSent, now, settings.ExpiryDays, settings.ReminderDays) {
			continue
		}
		daysLeft := policy.DaysUntilExpiry(*u.Meta.LastPasswordUpdate, now, settings.ExpiryDays)

		if err := r.sender.SendReminder(ctx, u.User, daysLeft); err != nil {
			summary.Failed++
			r.logger.ZL.Error().Err(err).Str("user_id", u.ID.String()).Int("days_left", daysLeft).Msg("Failed to send reminder")
			continue
		}
		summary.Sent++

		if err := r.meta.MarkReminderSent(ctx, u.ID, today); err != nil {
			summary.WriteFailed++
			r.logger.ZL.Error().Err(err).Str("user_id", u.ID.String()).Msg("Failed to record reminder")
			continue
		}

		r.logger.ZL.Debug().Str("user_id", u.ID.String()).Int("days_left", daysLeft).Msg("Reminder sent")
	}

	return summary
}

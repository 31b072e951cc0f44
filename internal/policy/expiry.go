package policy

import (
	"time"

	"github.com/jwalitptl/passpolicy/internal/model"
)

const secondsPerDay = 86400

// DaysSinceUpdate is the number of whole days elapsed since lastUpdate,
// rounded down.
func DaysSinceUpdate(lastUpdate, now time.Time) int {
	return floorDiv(now.Unix()-lastUpdate.Unix(), secondsPerDay)
}

// DaysUntilExpiry is expiryDays minus the whole days since lastUpdate. It
// is zero on the day of expiry and negative afterwards.
func DaysUntilExpiry(lastUpdate, now time.Time, expiryDays int) int {
	return expiryDays - DaysSinceUpdate(lastUpdate, now)
}

// IsReminderDue decides whether a reminder should go out today. Users
// with no recorded password change are never reminded; the day of
// expiry itself is outside the window; at most one reminder is sent per
// calendar day of now.
func IsReminderDue(lastUpdate *time.Time, lastReminderSent string, now time.Time, expiryDays, reminderDays int) bool {
	if lastUpdate == nil || lastUpdate.IsZero() {
		return false
	}

	daysLeft := DaysUntilExpiry(*lastUpdate, now, expiryDays)
	if daysLeft <= 0 || daysLeft > reminderDays {
		return false
	}

	return lastReminderSent != Today(now)
}

// Today formats now as a reminder date.
func Today(now time.Time) string {
	return now.Format(model.DateLayout)
}

func floorDiv(a, b int64) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return int(q)
}

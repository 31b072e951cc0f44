package model

// Settings bounds
const (
	MinHistoryCount = 1
	MaxHistoryCount = 10
	MinExpiryDays   = 1
	MaxExpiryDays   = 365
	MinReminderDays = 1
)

// Settings is the password policy configuration. It is replaced
// wholesale on save.
type Settings struct {
	ForcePasswordReset   bool `json:"force_password_reset"`
	DisallowLastPassword bool `json:"disallow_last_password"`
	PasswordHistoryCount int  `json:"password_history_count"`
	EnableReminder       bool `json:"enable_reminder"`
	ExpiryDays           int  `json:"expiry_days"`
	ReminderDays         int  `json:"reminder_days"`
}

// DefaultSettings returns the record seeded on activation.
func DefaultSettings() Settings {
	return Settings{
		ForcePasswordReset:   false,
		DisallowLastPassword: false,
		PasswordHistoryCount: 3,
		EnableReminder:       false,
		ExpiryDays:           90,
		ReminderDays:         7,
	}
}

// HistoryEnforced reports whether reuse checks and history recording on
// profile updates are active.
func (s Settings) HistoryEnforced() bool {
	return s.ForcePasswordReset && s.DisallowLastPassword
}

// RemindersEnabled reports whether the daily reminder pass should run.
func (s Settings) RemindersEnabled() bool {
	return s.ForcePasswordReset && s.EnableReminder
}

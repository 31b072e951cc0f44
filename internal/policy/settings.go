// Package policy holds the pure password-policy decisions: settings
// validation, password-history reuse and recording, and expiry reminder
// eligibility. Nothing in this package performs I/O or logs.
package policy

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jwalitptl/passpolicy/internal/model"
)

// Validation error codes.
const (
	CodeMissingField        = "missing_field"
	CodeInvalidType         = "invalid_type"
	CodeOutOfRange          = "out_of_range"
	CodeInvalidReminderDays = "invalid_reminder_days"
)

// Settings field names as they appear on the wire.
const (
	FieldForcePasswordReset   = "force_password_reset"
	FieldDisallowLastPassword = "disallow_last_password"
	FieldPasswordHistoryCount = "password_history_count"
	FieldEnableReminder       = "enable_reminder"
	FieldExpiryDays           = "expiry_days"
	FieldReminderDays         = "reminder_days"
)

var requiredFields = []string{
	FieldForcePasswordReset,
	FieldDisallowLastPassword,
	FieldPasswordHistoryCount,
	FieldEnableReminder,
	FieldExpiryDays,
	FieldReminderDays,
}

// ValidationError reports a settings record that must not be persisted.
type ValidationError struct {
	Code    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// RawSettings is an undecoded settings body, keyed by wire field name.
type RawSettings map[string]interface{}

// Validate coerces and checks a raw settings body. Numeric fields are
// coerced to non-negative integers; boolean fields must already be
// booleans. Out-of-range values are rejected, never clamped.
func Validate(raw RawSettings) (model.Settings, error) {
	for _, field := range requiredFields {
		if _, ok := raw[field]; !ok {
			return model.Settings{}, &ValidationError{
				Code:    CodeMissingField,
				Field:   field,
				Message: fmt.Sprintf("%s is required.", field),
			}
		}
	}

	var (
		s   model.Settings
		err error
	)
	if s.ForcePasswordReset, err = strictBool(raw, FieldForcePasswordReset); err != nil {
		return model.Settings{}, err
	}
	if s.DisallowLastPassword, err = strictBool(raw, FieldDisallowLastPassword); err != nil {
		return model.Settings{}, err
	}
	if s.EnableReminder, err = strictBool(raw, FieldEnableReminder); err != nil {
		return model.Settings{}, err
	}

	s.PasswordHistoryCount = absint(raw[FieldPasswordHistoryCount])
	s.ExpiryDays = absint(raw[FieldExpiryDays])
	s.ReminderDays = absint(raw[FieldReminderDays])

	if err := CheckSettings(s); err != nil {
		return model.Settings{}, err
	}
	return s, nil
}

// CheckSettings applies the range and cross-field rules to a typed record.
func CheckSettings(s model.Settings) error {
	if s.ReminderDays >= s.ExpiryDays {
		return &ValidationError{
			Code:    CodeInvalidReminderDays,
			Field:   FieldReminderDays,
			Message: "Reminder days must be less than expiry days.",
		}
	}
	if s.PasswordHistoryCount < model.MinHistoryCount || s.PasswordHistoryCount > model.MaxHistoryCount {
		return outOfRange(FieldPasswordHistoryCount, model.MinHistoryCount, model.MaxHistoryCount)
	}
	if s.ExpiryDays < model.MinExpiryDays || s.ExpiryDays > model.MaxExpiryDays {
		return outOfRange(FieldExpiryDays, model.MinExpiryDays, model.MaxExpiryDays)
	}
	if s.ReminderDays < model.MinReminderDays {
		return outOfRange(FieldReminderDays, model.MinReminderDays, s.ExpiryDays-1)
	}
	return nil
}

func outOfRange(field string, min, max int) *ValidationError {
	return &ValidationError{
		Code:    CodeOutOfRange,
		Field:   field,
		Message: fmt.Sprintf("%s must be between %d and %d.", field, min, max),
	}
}

func strictBool(raw RawSettings, field string) (bool, error) {
	b, ok := raw[field].(bool)
	if !ok {
		return false, &ValidationError{
			Code:    CodeInvalidType,
			Field:   field,
			Message: fmt.Sprintf("%s must be a boolean.", field),
		}
	}
	return b, nil
}

// absint mirrors the host's integer sanitizer: truncate toward zero,
// drop the sign, and treat anything unparseable as zero.
func absint(v interface{}) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0
	}
	return int(math.Abs(math.Trunc(f)))
}

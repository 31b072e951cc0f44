package policy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/passpolicy/internal/model"
)

func validRaw() RawSettings {
	return RawSettings{
		FieldForcePasswordReset:   true,
		FieldDisallowLastPassword: true,
		FieldPasswordHistoryCount: float64(3),
		FieldEnableReminder:       true,
		FieldExpiryDays:           float64(90),
		FieldReminderDays:         float64(7),
	}
}

func requireValidationCode(t *testing.T, err error, code, field string) {
	t.Helper()
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, code, vErr.Code)
	if field != "" {
		assert.Equal(t, field, vErr.Field)
	}
}

func TestValidateAcceptsWellFormedSettings(t *testing.T) {
	s, err := Validate(validRaw())
	require.NoError(t, err)
	assert.Equal(t, model.Settings{
		ForcePasswordReset:   true,
		DisallowLastPassword: true,
		PasswordHistoryCount: 3,
		EnableReminder:       true,
		ExpiryDays:           90,
		ReminderDays:         7,
	}, s)
}

func TestValidateCoercesNumerics(t *testing.T) {
	raw := validRaw()
	raw[FieldPasswordHistoryCount] = "5"
	raw[FieldExpiryDays] = float64(-30.9)
	raw[FieldReminderDays] = json.Number("10")

	s, err := Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, 5, s.PasswordHistoryCount)
	assert.Equal(t, 30, s.ExpiryDays)
	assert.Equal(t, 10, s.ReminderDays)
}

func TestValidateRejectsNonBooleans(t *testing.T) {
	for _, v := range []interface{}{"true", float64(1), nil} {
		raw := validRaw()
		raw[FieldEnableReminder] = v
		_, err := Validate(raw)
		requireValidationCode(t, err, CodeInvalidType, FieldEnableReminder)
	}
}

func TestValidateRejectsMissingField(t *testing.T) {
	raw := validRaw()
	delete(raw, FieldExpiryDays)
	_, err := Validate(raw)
	requireValidationCode(t, err, CodeMissingField, FieldExpiryDays)
}

func TestValidateReminderWindow(t *testing.T) {
	raw := validRaw()
	raw[FieldExpiryDays] = float64(30)
	raw[FieldReminderDays] = float64(30)
	_, err := Validate(raw)
	requireValidationCode(t, err, CodeInvalidReminderDays, FieldReminderDays)

	raw[FieldReminderDays] = float64(45)
	_, err = Validate(raw)
	requireValidationCode(t, err, CodeInvalidReminderDays, FieldReminderDays)

	raw[FieldReminderDays] = float64(29)
	_, err = Validate(raw)
	assert.NoError(t, err)
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value interface{}
		extra map[string]interface{}
		code  string
	}{
		{"history zero", FieldPasswordHistoryCount, float64(0), nil, CodeOutOfRange},
		{"history eleven", FieldPasswordHistoryCount, float64(11), nil, CodeOutOfRange},
		{"history garbage", FieldPasswordHistoryCount, "abc", nil, CodeOutOfRange},
		{"expiry too large", FieldExpiryDays, float64(366), map[string]interface{}{FieldReminderDays: float64(7)}, CodeOutOfRange},
		{"reminder zero", FieldReminderDays, float64(0), nil, CodeOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			raw[tt.field] = tt.value
			for k, v := range tt.extra {
				raw[k] = v
			}
			_, err := Validate(raw)
			requireValidationCode(t, err, tt.code, tt.field)
		})
	}
}

func TestValidateSucceedsIffBoundsHold(t *testing.T) {
	for count := 0; count <= 11; count++ {
		for _, expiry := range []int{0, 1, 2, 30, 365, 366} {
			for _, reminder := range []int{0, 1, 29, 30, 364, 365} {
				raw := validRaw()
				raw[FieldPasswordHistoryCount] = float64(count)
				raw[FieldExpiryDays] = float64(expiry)
				raw[FieldReminderDays] = float64(reminder)

				_, err := Validate(raw)
				want := count >= 1 && count <= 10 && reminder >= 1 && reminder < expiry && expiry <= 365
				assert.Equal(t, want, err == nil, "count=%d expiry=%d reminder=%d", count, expiry, reminder)
			}
		}
	}
}

func TestCheckSettingsDefaults(t *testing.T) {
	assert.NoError(t, CheckSettings(model.DefaultSettings()))
}

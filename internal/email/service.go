package email

import (
	"context"
	"fmt"
)

type Service interface {
	SendPasswordExpiryReminder(ctx context.Context, to, displayName string, daysLeft int) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

// ReminderContent renders the subject and plain-text body of an expiry
// reminder.
func ReminderContent(displayName string, daysLeft int, siteName string) (subject, body string) {
	subject = fmt.Sprintf("Password Expiry Reminder - %d days remaining", daysLeft)
	body = fmt.Sprintf(`Hi %s,

This is a reminder that your password will expire in %d day(s).

Please log in to %s and update your password to maintain access to your account.

If you have any questions, please contact the site administrator.

Thank you.`, displayName, daysLeft, siteName)
	return subject, body
}

package email

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/passpolicy/config"
	"github.com/jwalitptl/passpolicy/pkg/logger"
)

// sender is satisfied by *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	dialer   sender
	from     string
	siteName string
	cb       *gobreaker.CircuitBreaker
	logger   *logger.Logger
}

// NewSMTPService sends mail through the configured SMTP relay.
func NewSMTPService(cfg config.SMTPConfig, log *logger.Logger) Service {
	return newSMTPService(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg, log)
}

func newSMTPService(d sender, cfg config.SMTPConfig, log *logger.Logger) *smtpService {
	svc := &smtpService{
		dialer:   d,
		from:     cfg.From,
		siteName: cfg.SiteName,
		logger:   log,
	}
	svc.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.ZL.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})
	return svc
}

func (s *smtpService) SendPasswordExpiryReminder(ctx context.Context, to, displayName string, daysLeft int) error {
	subject, body := ReminderContent(displayName, daysLeft, s.siteName)
	return s.SendCustom(ctx, to, subject, body)
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", content)

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.dialer.DialAndSend(m)
	})
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

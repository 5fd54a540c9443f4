// Package notify is the outbound notification dispatcher. Sends are
// fire-and-forget: a failed send is logged by the caller and never rolls back
// the alert or error that triggered it.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"

	"github.com/errormonitoring/backend/internal/config"
)

// Mailer sends one message to one address.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewMailer selects a dispatcher implementation from config.
func NewMailer(cfg config.Config) (Mailer, error) {
	switch cfg.Notify.Mode {
	case "smtp":
		return NewSMTPMailer(cfg.SMTP)
	case "log":
		return &LogMailer{}, nil
	default:
		return nil, fmt.Errorf("unknown notify mode %q", cfg.Notify.Mode)
	}
}

// SMTPMailer delivers mail over SMTP using go-mail.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

// NewSMTPMailer creates an SMTPMailer from SMTP config.
func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// LogMailer logs instead of sending. Used in development and tests.
type LogMailer struct{}

func (m *LogMailer) Send(_ context.Context, to, subject, _ string) error {
	slog.Info("notification (log mode)", "to", to, "subject", subject)
	return nil
}

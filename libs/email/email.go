// Package email sends transactional mail through SendGrid, plain SMTP
// (Mailpit in development) or a logging stub.
package email

import (
	"context"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/consultcrm/libs/config"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
	ProviderID() string
}

// FromEnv picks SendGrid when SENDGRID_API_KEY is set, SMTP when SMTP_HOST is
// set, and the logging stub otherwise.
func FromEnv(logger *slog.Logger) Sender {
	fromEmail := config.String("EMAIL_FROM", "no-reply@consultcrm.local")
	fromName := config.String("EMAIL_FROM_NAME", "Consultoría")
	if key := strings.TrimSpace(config.String("SENDGRID_API_KEY", "")); key != "" {
		return NewSendGridSender(SendGridConfig{APIKey: key, FromEmail: fromEmail, FromName: fromName}, logger)
	}
	if host := strings.TrimSpace(config.String("SMTP_HOST", "")); host != "" {
		return NewSMTPSender(host, config.String("SMTP_PORT", "1025"), fromEmail)
	}
	return NewLogSender(logger)
}

type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "email not sent (no provider configured)", "to", msg.To, "subject", msg.Subject)
	return nil
}

func (s *LogSender) ProviderID() string { return "log" }

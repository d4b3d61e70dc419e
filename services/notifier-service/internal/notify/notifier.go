// Package notify turns CRM events into Spanish e-mails to clients and the
// practice owner.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/consultcrm/libs/email"
	"github.com/md-rashed-zaman/consultcrm/libs/kafkax"
	"github.com/md-rashed-zaman/consultcrm/libs/metrics"
	"github.com/md-rashed-zaman/consultcrm/services/notifier-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

type Notifier struct {
	store      *storage.Repository
	mailer     email.Sender
	metrics    *metrics.EventMetrics
	logger     *slog.Logger
	adminEmail string
	now        func() time.Time
}

func New(store *storage.Repository, mailer email.Sender, m *metrics.EventMetrics, logger *slog.Logger, adminEmail string) *Notifier {
	return &Notifier{
		store:      store,
		mailer:     mailer,
		metrics:    m,
		logger:     logger,
		adminEmail: adminEmail,
		now:        time.Now,
	}
}

// Handle sends the e-mails for one event. Client-facing sends are written to
// the communication log whatever the outcome, so a failed delivery shows up
// on the dashboard instead of being retried. A failed account e-mail returns
// an error so the consumer retries the event.
func (n *Notifier) Handle(ctx context.Context, tx pgx.Tx, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	notes, err := Compose(meta.EventType, msg.Value, n.adminEmail)
	if errors.Is(err, ErrUnhandled) {
		n.logger.DebugContext(ctx, "event needs no notification", "event_type", meta.EventType)
		return nil
	}
	if err != nil {
		n.logger.ErrorContext(ctx, "invalid event payload", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}

	for _, note := range notes {
		sendErr := n.mailer.Send(ctx, note.Message)
		status := "sent"
		if sendErr != nil {
			status = "failed"
			n.logger.WarnContext(ctx, "email send failed", "err", sendErr, "template", note.Template, "provider", n.mailer.ProviderID())
		}
		n.metrics.ObserveEmail(note.Template, status)

		if sendErr != nil && note.Retry {
			return sendErr
		}
		if note.ClientID == "" {
			continue
		}
		entry := storage.CommunicationLog{
			ClientID:  note.ClientID,
			Recipient: note.Message.To,
			Subject:   note.Message.Subject,
			Body:      note.Message.Body,
			Status:    status,
		}
		if sendErr != nil {
			entry.Error = sendErr.Error()
		} else {
			sent := n.now().UTC()
			entry.SentAt = &sent
		}
		if err := n.store.InsertLog(ctx, tx, entry); err != nil {
			return err
		}
	}
	n.logger.InfoContext(ctx, "event notified", "event_id", meta.EventID, "event_type", meta.EventType, "emails", len(notes))
	return nil
}

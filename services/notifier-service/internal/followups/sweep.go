// Package followups mails the practice owner a digest of follow-ups that
// fell due, on a cron schedule.
package followups

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/libs/email"
	"github.com/md-rashed-zaman/consultcrm/libs/metrics"
	"github.com/md-rashed-zaman/consultcrm/services/notifier-service/internal/storage"
	"github.com/robfig/cron/v3"
)

const DefaultSchedule = "0 8 * * *"

type Config struct {
	// Schedule is a five-field cron expression evaluated in Location.
	Schedule   string
	Location   *time.Location
	AdminEmail string
	BatchSize  int
}

type Sweeper struct {
	conn    db.DBTX
	store   *storage.Repository
	mailer  email.Sender
	metrics *metrics.EventMetrics
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
}

func NewSweeper(conn db.DBTX, store *storage.Repository, mailer email.Sender, m *metrics.EventMetrics, logger *slog.Logger, cfg Config) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &Sweeper{conn: conn, store: store, mailer: mailer, metrics: m, logger: logger, cfg: cfg, now: time.Now}
}

// Start registers the sweep on a cron scheduler and runs it until ctx ends.
func (s *Sweeper) Start(ctx context.Context) error {
	if strings.TrimSpace(s.cfg.AdminEmail) == "" {
		s.logger.Warn("follow-up digest disabled: ADMIN_EMAIL not set")
		return nil
	}
	c := cron.New(cron.WithLocation(s.cfg.Location))
	if _, err := c.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("follow-up sweep failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("follow-up schedule %q: %w", s.cfg.Schedule, err)
	}
	c.Start()
	s.logger.Info("follow-up digest scheduled", "schedule", s.cfg.Schedule, "tz", s.cfg.Location.String())
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}

// Sweep claims due follow-ups and mails one digest. The claim is rolled back
// when the e-mail fails so the next run picks the same items up. It returns
// how many follow-ups the digest listed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	today := s.now().In(s.cfg.Location).Format(time.DateOnly)
	var listed int
	err := db.InTx(ctx, s.conn, func(tx pgx.Tx) error {
		due, err := s.store.ClaimDueFollowUps(ctx, tx, today, s.cfg.Location.String(), s.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}
		if err := s.mailer.Send(ctx, digest(today, due, s.cfg.AdminEmail)); err != nil {
			s.metrics.ObserveEmail("follow_up_digest", "failed")
			return fmt.Errorf("send digest: %w", err)
		}
		s.metrics.ObserveEmail("follow_up_digest", "sent")
		listed = len(due)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if listed > 0 {
		s.logger.Info("follow-up digest sent", "count", listed, "date", today)
	}
	return listed, nil
}

func digest(today string, due []storage.DueFollowUp, to string) email.Message {
	sort.SliceStable(due, func(i, j int) bool { return due[i].DueDate < due[j].DueDate })
	var b strings.Builder
	fmt.Fprintf(&b, "Seguimientos pendientes a fecha %s:\n", today)
	for _, f := range due {
		marker := ""
		if f.DueDate < today {
			marker = " (atrasado)"
		}
		fmt.Fprintf(&b, "\n- %s%s: %s <%s>\n  %s\n", f.DueDate, marker, f.ClientName, f.ClientEmail, f.Note)
	}
	subject := fmt.Sprintf("%d seguimientos pendientes", len(due))
	if len(due) == 1 {
		subject = "1 seguimiento pendiente"
	}
	return email.Message{
		To:      to,
		Subject: subject,
		Body:    b.String(),
	}
}

// Package booking runs the availability queries and the transactional writes
// of the booking funnel and the admin calendar.
package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/libs/metrics"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/availability"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/live"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/outbox"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/payments"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the business calendar settings.
type Config struct {
	Location        *time.Location
	StartHour       int
	EndHour         int
	IntervalMinutes int
}

func (c Config) withDefaults() Config {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.EndHour == 0 {
		c.StartHour, c.EndHour = 9, 18
	}
	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = 30
	}
	return c
}

// Deps are the optional collaborators. Nil Checkout disables online payment;
// nil Live drops change notifications.
type Deps struct {
	Checkout payments.Checkout
	Live     live.Publisher
	Metrics  *metrics.BookingMetrics
	Now      func() time.Time
}

type Service struct {
	conn          db.DBTX
	appointments  *storage.AppointmentRepository
	availability  *storage.AvailabilityRepository
	clients       *storage.ClientRepository
	consultations *storage.ConsultationRepository
	plans         *storage.PlanRepository
	idempotency   *storage.IdempotencyRepository
	outbox        *outbox.Repository

	checkout payments.Checkout
	live     live.Publisher
	metrics  *metrics.BookingMetrics
	logger   *slog.Logger
	tracer   trace.Tracer
	cfg      Config
	now      func() time.Time
}

func NewService(conn db.DBTX, logger *slog.Logger, cfg Config, deps Deps) *Service {
	if deps.Live == nil {
		deps.Live = live.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		conn:          conn,
		appointments:  storage.NewAppointmentRepository(conn),
		availability:  storage.NewAvailabilityRepository(conn),
		clients:       storage.NewClientRepository(conn),
		consultations: storage.NewConsultationRepository(conn),
		plans:         storage.NewPlanRepository(conn),
		idempotency:   storage.NewIdempotencyRepository(conn),
		outbox:        outbox.NewRepository(),
		checkout:      deps.Checkout,
		live:          deps.Live,
		metrics:       deps.Metrics,
		logger:        logger,
		tracer:        otel.Tracer("crm.booking"),
		cfg:           cfg.withDefaults(),
		now:           deps.Now,
	}
}

func (s *Service) Location() *time.Location { return s.cfg.Location }

func (s *Service) slotOptions(duration int) availability.SlotOptions {
	return availability.SlotOptions{
		StartHour:       s.cfg.StartHour,
		EndHour:         s.cfg.EndHour,
		IntervalMinutes: s.cfg.IntervalMinutes,
		Duration:        duration,
	}
}

// resolver loads everything that can affect dates in [from, to] through conn,
// which is the pool for reads and the booking transaction for re-checks.
func (s *Service) resolver(ctx context.Context, conn db.DBTX, from, to string) (*availability.Resolver, error) {
	avail := s.availability.WithTx(conn)
	rules, err := avail.ListRulesBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	blocks, err := avail.ListBlockedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	appts, err := s.appointments.WithTx(conn).ListBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	r, err := availability.NewResolver(availability.Snapshot{Rules: rules, Blocks: blocks, Appointments: appts})
	if err != nil {
		s.logger.WarnContext(ctx, "skipping malformed availability records", "from", from, "to", to, "err", err)
	}
	return r, nil
}

// today returns the civil date and minute of day in the business timezone.
func (s *Service) today() (string, availability.Clock) {
	now := s.now().In(s.cfg.Location)
	return now.Format(availability.DateLayout), availability.Clock(now.Hour()*60 + now.Minute())
}

// inPast reports whether a slot starting at start on date has already begun.
func (s *Service) inPast(date string, start availability.Clock) bool {
	today, minute := s.today()
	return date < today || (date == today && start <= minute)
}

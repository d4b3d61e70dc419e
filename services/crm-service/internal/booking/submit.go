package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/libs/events"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/apperr"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/availability"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/live"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/payments"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/storage"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/validation"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/wizard"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const funnelSource = "booking_funnel"

// Applicant is the signed-in user submitting the funnel.
type Applicant struct {
	UserID string
	Name   string
	Email  string
}

type SubmitResult struct {
	Consultation model.Consultation `json:"consultation"`
	Appointment  *model.Appointment `json:"appointment,omitempty"`
	CheckoutURL  string             `json:"checkoutUrl,omitempty"`
	// Replayed is set when an Idempotency-Key matched an earlier submission.
	Replayed bool `json:"-"`
}

func consultationPayload(c model.Consultation, at time.Time) events.ConsultationPayload {
	return events.ConsultationPayload{
		ConsultationID:     c.ID,
		ClientID:           c.ClientID,
		ClientName:         c.ClientName,
		ClientEmail:        c.ClientEmail,
		PlanType:           string(c.PlanType),
		ProblemDescription: c.ProblemDescription,
		PreferredDate:      c.PreferredDate,
		PreferredTime:      c.PreferredTime,
		AppointmentID:      c.AppointmentID,
		PaymentStatus:      string(c.PaymentStatus),
		AmountCents:        c.AmountCents,
		Currency:           c.Currency,
		OccurredAt:         at.UTC().Format(time.RFC3339),
	}
}

// Submit persists a completed funnel: the client (upserted by e-mail), the
// consultation and, for timed plans, the appointment, all in one transaction.
// Paid plans get a checkout URL when a payment provider is configured.
func (s *Service) Submit(ctx context.Context, who Applicant, req validation.ConsultationRequest, idempotencyKey string) (SubmitResult, error) {
	started := s.now()
	ctx, span := s.tracer.Start(ctx, "booking.submit")
	defer span.End()
	plan := planLabel(req.PlanType)
	span.SetAttributes(attribute.String("plan", plan))

	res, err := s.submit(ctx, who, req, idempotencyKey)
	if !res.Replayed {
		s.metrics.ObserveBooking(plan, outcome(err), s.now().Sub(started).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		return SubmitResult{}, err
	}
	span.SetAttributes(attribute.String("consultation.id", res.Consultation.ID), attribute.Bool("replayed", res.Replayed))

	if !res.Replayed {
		s.logger.InfoContext(ctx, "consultation submitted",
			"consultation_id", res.Consultation.ID,
			"plan", res.Consultation.PlanType,
			"appointment_id", res.Consultation.AppointmentID,
		)
		s.live.Publish(ctx, live.TopicConsultations, "consultation.created", res.Consultation.ID, res.Consultation)
		if res.Appointment != nil {
			s.live.Publish(ctx, live.TopicAppointments, "appointment.created", res.Appointment.ID, res.Appointment)
		}
	} else if fresh, err := s.consultations.Get(ctx, res.Consultation.ID); err == nil {
		res.Consultation = fresh
	}
	s.attachCheckout(ctx, &res)
	return res, nil
}

// planLabel keeps metric and span labels to the known plan types.
func planLabel(raw string) string {
	if p, ok := model.ParsePlanType(strings.TrimSpace(raw)); ok {
		return string(p)
	}
	return "invalid"
}

func (s *Service) submit(ctx context.Context, who Applicant, req validation.ConsultationRequest, key string) (SubmitResult, error) {
	if err := req.Validate(); err != nil {
		return SubmitResult{}, err
	}
	if who.Email == "" {
		return SubmitResult{}, apperr.Auth("auth/invalid-credential")
	}
	planType := model.PlanType(req.PlanType)
	if _, err := wizard.Replay(wizard.Submission{
		Problem: req.ProblemDescription,
		Plan:    planType,
		Date:    req.PreferredDate,
		Time:    req.PreferredTime,
	}); err != nil {
		return SubmitResult{}, apperr.BadRequest("La solicitud no completa los pasos de la reserva.")
	}

	plan, err := s.plans.GetByType(ctx, planType)
	if err != nil && !db.IsNotFound(err) {
		return SubmitResult{}, err
	}
	if err != nil || !plan.IsActive {
		return SubmitResult{}, apperr.Validation(apperr.FieldErrors{"planType": "Este plan no está disponible."})
	}
	if planType.Scheduled() {
		start, _ := availability.ParseClock(req.PreferredTime)
		if s.inPast(req.PreferredDate, start) {
			return SubmitResult{}, apperr.Validation(apperr.FieldErrors{"preferredTime": "El horario seleccionado ya ha pasado."})
		}
	}

	var res SubmitResult
	err = db.InTx(ctx, s.conn, func(tx pgx.Tx) error {
		var rec storage.IdempotencyRecord
		if key != "" {
			locked, found, err := s.idempotency.WithTx(tx).Lock(ctx, "consultation:"+who.UserID, key)
			if err != nil {
				return err
			}
			rec = locked
			if found && rec.Completed() {
				res.Replayed = true
				return json.Unmarshal(rec.ResponsePayload, &res)
			}
		}

		client, err := s.clients.WithTx(tx).UpsertByEmail(ctx, model.Client{
			Name:    who.Name,
			Email:   who.Email,
			Phone:   req.Phone,
			Company: req.Company,
			Status:  model.ClientLead,
			Source:  funnelSource,
		})
		if err != nil {
			return err
		}

		c := model.Consultation{
			ClientID:           client.ID,
			UserID:             who.UserID,
			ClientName:         client.Name,
			ClientEmail:        client.Email,
			ClientPhone:        client.Phone,
			Company:            client.Company,
			ProblemDescription: req.ProblemDescription,
			PlanType:           planType,
			PreferredDate:      req.PreferredDate,
			PreferredTime:      req.PreferredTime,
			Status:             model.ConsultationPending,
			PaymentStatus:      model.PaymentNotRequired,
			AmountCents:        plan.PriceCents,
			Currency:           plan.Currency,
		}
		if plan.Paid() {
			c.PaymentStatus = model.PaymentPending
		}
		consults := s.consultations.WithTx(tx)
		if err := consults.Insert(ctx, &c); err != nil {
			return err
		}

		if planType.Scheduled() {
			a := model.Appointment{
				ClientID:       client.ID,
				ConsultationID: c.ID,
				ClientName:     client.Name,
				ClientEmail:    client.Email,
				PlanType:       planType,
				Date:           req.PreferredDate,
				StartTime:      req.PreferredTime,
				Duration:       plan.Duration,
				Status:         model.AppointmentScheduled,
			}
			if err := validation.Appointment(&a); err != nil {
				return err
			}
			if err := s.reserve(ctx, tx, &a); err != nil {
				return err
			}
			if err := consults.SetAppointment(ctx, c.ID, a.ID); err != nil {
				return err
			}
			c.AppointmentID = a.ID
			if err := s.emit(ctx, tx, "appointment", a.ID, events.AppointmentScheduled, appointmentPayload(a, "", a.CreatedAt)); err != nil {
				return err
			}
			res.Appointment = &a
		}
		if err := s.emit(ctx, tx, "consultation", c.ID, events.ConsultationCreated, consultationPayload(c, c.CreatedAt)); err != nil {
			return err
		}
		res.Consultation = c

		if key != "" {
			body, err := json.Marshal(res)
			if err != nil {
				return err
			}
			rec.ResourceID = c.ID
			rec.StatusCode = http.StatusCreated
			rec.ResponsePayload = body
			if err := s.idempotency.WithTx(tx).Finalize(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return SubmitResult{}, err
	}
	return res, nil
}

// attachCheckout opens a payment session for a pending consultation. Failures
// are logged and leave the consultation pending; Stripe's idempotency key
// makes a retried submission return the same session.
func (s *Service) attachCheckout(ctx context.Context, res *SubmitResult) {
	c := res.Consultation
	if s.checkout == nil || c.PaymentStatus != model.PaymentPending {
		return
	}
	plan, err := s.plans.GetByType(ctx, c.PlanType)
	name := string(c.PlanType)
	if err == nil {
		name = plan.Name
	}
	sess, err := s.checkout.CreateCheckout(ctx, payments.CheckoutRequest{
		ConsultationID: c.ID,
		PlanName:       name,
		AmountCents:    c.AmountCents,
		Currency:       c.Currency,
		CustomerEmail:  c.ClientEmail,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "checkout session failed", "consultation_id", c.ID, "err", err)
		return
	}
	if c.CheckoutSessionID != sess.ID {
		if err := s.consultations.SetCheckoutSession(ctx, c.ID, sess.ID); err != nil {
			s.logger.WarnContext(ctx, "checkout session not stored", "consultation_id", c.ID, "err", err)
		}
	}
	res.Consultation.CheckoutSessionID = sess.ID
	res.CheckoutURL = sess.URL
}

// ConfirmPayment applies a completed checkout. Replayed webhooks are no-ops.
func (s *Service) ConfirmPayment(ctx context.Context, done payments.Completion) error {
	ctx, span := s.tracer.Start(ctx, "booking.confirm_payment")
	defer span.End()
	span.SetAttributes(attribute.String("consultation.id", done.ConsultationID))

	var paid model.Consultation
	applied := false
	err := db.InTx(ctx, s.conn, func(tx pgx.Tx) error {
		consults := s.consultations.WithTx(tx)
		ok, err := consults.MarkPaid(ctx, done.ConsultationID, done.SessionID)
		if err != nil || !ok {
			return err
		}
		if paid, err = consults.Get(ctx, done.ConsultationID); err != nil {
			return err
		}
		applied = true
		return s.emit(ctx, tx, "consultation", paid.ID, events.ConsultationPaid, consultationPayload(paid, done.OccurredAt))
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !applied {
		s.logger.InfoContext(ctx, "payment already applied or consultation unknown", "consultation_id", done.ConsultationID, "event_id", done.EventID)
		return nil
	}
	s.logger.InfoContext(ctx, "consultation paid", "consultation_id", paid.ID, "amount_cents", done.AmountTotal)
	s.live.Publish(ctx, live.TopicConsultations, "consultation.paid", paid.ID, paid)
	return nil
}

package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/libs/events"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/apperr"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/availability"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/live"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/outbox"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	outcomeCreated  = "created"
	outcomeConflict = "conflict"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

func outcome(err error) string {
	if err == nil {
		return outcomeCreated
	}
	switch apperr.Classify(err).Kind {
	case apperr.KindConflict:
		return outcomeConflict
	case apperr.KindValidation, apperr.KindNotFound:
		return outcomeRejected
	}
	return outcomeError
}

// reserve re-checks the slot under the date lock and inserts the appointment.
// It must run inside tx; the exclusion constraint catches anything the lock
// cannot, such as a manual insert.
func (s *Service) reserve(ctx context.Context, tx pgx.Tx, a *model.Appointment) error {
	appts := s.appointments.WithTx(tx)
	if err := appts.LockDate(ctx, a.Date); err != nil {
		return err
	}
	r, err := s.resolver(ctx, tx, a.Date, a.Date)
	if err != nil {
		return err
	}
	res, err := r.Check(a.Date, a.StartTime, a.Duration)
	if err != nil {
		return apperr.BadRequest(err.Error())
	}
	if err := rejection(res); err != nil {
		return err
	}
	if err := appts.Insert(ctx, a); err != nil {
		if db.IsExclusionViolation(err) {
			return apperr.Classify(err)
		}
		return err
	}
	return nil
}

// rejection turns a non-available slot into the field error shown next to the
// time picker. Only a competing booking is a conflict; everything else is a
// validation failure.
func rejection(res availability.Result) error {
	switch res.Status {
	case availability.StatusAvailable:
		return nil
	case availability.StatusBusy:
		return apperr.SlotTaken("Otra reserva ocupa este horario.")
	case availability.StatusBlocked:
		msg := "Este horario está bloqueado."
		if res.Reason != "" {
			msg = fmt.Sprintf("Este horario está bloqueado (%s).", res.Reason)
		}
		return apperr.Validation(apperr.FieldErrors{"startTime": msg})
	}
	return apperr.Validation(apperr.FieldErrors{"startTime": "El horario seleccionado está fuera de la disponibilidad."})
}

func appointmentPayload(a model.Appointment, previous model.AppointmentStatus, at time.Time) events.AppointmentPayload {
	return events.AppointmentPayload{
		AppointmentID:  a.ID,
		ConsultationID: a.ConsultationID,
		ClientID:       a.ClientID,
		ClientName:     a.ClientName,
		ClientEmail:    a.ClientEmail,
		PlanType:       string(a.PlanType),
		Date:           a.Date,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		Duration:       a.Duration,
		Status:         string(a.Status),
		PreviousStatus: string(previous),
		CancelReason:   a.CancelReason,
		OccurredAt:     at.UTC().Format(time.RFC3339),
	}
}

func (s *Service) emit(ctx context.Context, tx pgx.Tx, aggregate, id, eventType string, payload any) error {
	evt, err := outbox.NewEvent(aggregate, id, eventType, payload)
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, tx, evt)
}

// Book creates an appointment from the admin calendar. The client must exist;
// name and e-mail are copied from it when left blank.
func (s *Service) Book(ctx context.Context, a model.Appointment) (model.Appointment, error) {
	started := s.now()
	ctx, span := s.tracer.Start(ctx, "booking.book")
	defer span.End()

	err := s.book(ctx, &a)
	s.metrics.ObserveBooking(string(a.PlanType), outcome(err), s.now().Sub(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking failed")
		return model.Appointment{}, err
	}
	span.SetAttributes(attribute.String("appointment.id", a.ID), attribute.String("date", a.Date))
	s.logger.InfoContext(ctx, "appointment booked", "appointment_id", a.ID, "date", a.Date, "start", a.StartTime, "duration", a.Duration)
	s.live.Publish(ctx, live.TopicAppointments, "appointment.created", a.ID, a)
	return a, nil
}

func (s *Service) book(ctx context.Context, a *model.Appointment) error {
	if err := validation.Appointment(a); err != nil {
		return err
	}
	if !a.Status.Blocking() || a.Status == model.AppointmentCompleted {
		return apperr.Validation(apperr.FieldErrors{"status": "Una cita nueva debe estar programada o confirmada."})
	}
	return db.InTx(ctx, s.conn, func(tx pgx.Tx) error {
		client, err := s.clients.WithTx(tx).Get(ctx, a.ClientID)
		if err != nil {
			if db.IsNotFound(err) {
				return apperr.Validation(apperr.FieldErrors{"clientId": "Cliente no encontrado."})
			}
			return err
		}
		if a.ClientName == "" {
			a.ClientName = client.Name
		}
		if a.ClientEmail == "" {
			a.ClientEmail = client.Email
		}
		if err := s.reserve(ctx, tx, a); err != nil {
			return err
		}
		return s.emit(ctx, tx, "appointment", a.ID, events.AppointmentScheduled, appointmentPayload(*a, "", a.CreatedAt))
	})
}

// UpdateStatus moves an appointment along its lifecycle. reason is kept only
// for cancellations.
func (s *Service) UpdateStatus(ctx context.Context, id string, next model.AppointmentStatus, reason string) (model.Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.update_status")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", id), attribute.String("status", string(next)))

	if _, ok := model.ParseAppointmentStatus(string(next)); !ok {
		return model.Appointment{}, apperr.Validation(apperr.FieldErrors{"status": "Estado no válido."})
	}
	var updated model.Appointment
	err := db.InTx(ctx, s.conn, func(tx pgx.Tx) error {
		appts := s.appointments.WithTx(tx)
		current, err := appts.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.CanTransitionTo(next) {
			return apperr.InvalidTransition(string(current.Status), string(next))
		}
		if next != model.AppointmentCancelled {
			reason = ""
		}
		at, err := appts.UpdateStatus(ctx, id, next, reason)
		if err != nil {
			return err
		}
		previous := current.Status
		updated = current
		updated.Status = next
		updated.UpdatedAt = at
		if reason != "" {
			updated.CancelReason = reason
		}
		return s.emit(ctx, tx, "appointment", id, events.AppointmentStatusChanged, appointmentPayload(updated, previous, at))
	})
	if err != nil {
		span.RecordError(err)
		return model.Appointment{}, err
	}
	s.logger.InfoContext(ctx, "appointment status changed", "appointment_id", id, "status", next)
	s.live.Publish(ctx, live.TopicAppointments, "appointment.status_changed", id, updated)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.appointments.Delete(ctx, id); err != nil {
		return err
	}
	s.live.Publish(ctx, live.TopicAppointments, "appointment.deleted", id, nil)
	return nil
}

func (s *Service) UpdateNotes(ctx context.Context, id, notes string) (model.Appointment, error) {
	if err := s.appointments.UpdateNotes(ctx, id, notes); err != nil {
		return model.Appointment{}, err
	}
	a, err := s.appointments.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	s.live.Publish(ctx, live.TopicAppointments, "appointment.updated", id, a)
	return a, nil
}

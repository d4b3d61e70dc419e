package booking

import (
	"context"
	"strings"

	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/apperr"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/availability"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/validation"
	"go.opentelemetry.io/otel/attribute"
)

const reasonPast = "past"

// Duration resolves the slot length of a query: an explicit duration wins,
// otherwise the plan's.
func (s *Service) Duration(ctx context.Context, planType string, duration int) (int, error) {
	if duration != 0 {
		if duration < 0 || duration > validation.MaxDuration {
			return 0, apperr.Validation(apperr.FieldErrors{"duration": "La duración debe estar entre 1 y 480 minutos."})
		}
		return duration, nil
	}
	pt, ok := model.ParsePlanType(strings.TrimSpace(planType))
	if !ok || !pt.Scheduled() {
		return 0, apperr.Validation(apperr.FieldErrors{"plan": "Indica un plan con cita o una duración."})
	}
	plan, err := s.plans.GetByType(ctx, pt)
	if err != nil {
		return 0, err
	}
	if plan.Duration <= 0 {
		return 0, apperr.Validation(apperr.FieldErrors{"plan": "El plan no tiene duración configurada."})
	}
	return plan.Duration, nil
}

// Slots classifies every candidate slot of date. Slots that already started in
// the business timezone are reported unavailable.
func (s *Service) Slots(ctx context.Context, date string, duration int, onlyAvailable bool) ([]availability.Result, error) {
	ctx, span := s.tracer.Start(ctx, "booking.slots")
	defer span.End()
	span.SetAttributes(attribute.String("date", date), attribute.Int("duration", duration))

	if _, err := availability.ParseDate(date); err != nil {
		return nil, apperr.Validation(apperr.FieldErrors{"date": "Fecha no válida (AAAA-MM-DD)."})
	}
	r, err := s.resolver(ctx, s.conn, date, date)
	if err != nil {
		return nil, err
	}
	slots, err := r.DaySlots(date, s.slotOptions(duration))
	if err != nil {
		return nil, apperr.BadRequest(err.Error())
	}
	out := slots[:0]
	for _, slot := range slots {
		start, _ := availability.ParseClock(slot.StartTime)
		if slot.Available() && s.inPast(date, start) {
			slot.Status = availability.StatusUnavailable
			slot.Reason = reasonPast
		}
		if onlyAvailable && !slot.Available() {
			continue
		}
		out = append(out, slot)
	}
	return out, nil
}

// Calendar classifies every day of month ("YYYY-MM") for the date picker.
// Days before today never report free slots.
func (s *Service) Calendar(ctx context.Context, month string, duration int) ([]availability.Day, error) {
	ctx, span := s.tracer.Start(ctx, "booking.calendar")
	defer span.End()
	span.SetAttributes(attribute.String("month", month))

	year, m, err := availability.ParseMonth(month)
	if err != nil {
		return nil, apperr.Validation(apperr.FieldErrors{"month": "Mes no válido (AAAA-MM)."})
	}
	from, to := availability.MonthRange(year, m)
	r, err := s.resolver(ctx, s.conn, from, to)
	if err != nil {
		return nil, err
	}
	days, err := r.Month(year, m, s.slotOptions(duration))
	if err != nil {
		return nil, apperr.BadRequest(err.Error())
	}
	today, _ := s.today()
	for i := range days {
		if days[i].Date >= today {
			continue
		}
		days[i].AvailableSlots = 0
		if days[i].Status == availability.DayAvailable {
			days[i].Status = availability.DayNone
		}
	}
	return days, nil
}

// Check answers whether one proposed booking would be accepted right now.
func (s *Service) Check(ctx context.Context, date, startTime string, duration int) (availability.Result, error) {
	ctx, span := s.tracer.Start(ctx, "booking.check")
	defer span.End()

	f := apperr.FieldErrors{}
	if _, err := availability.ParseDate(date); err != nil {
		f.Add("date", "Fecha no válida (AAAA-MM-DD).")
	}
	start, err := availability.ParseClock(startTime)
	if err != nil {
		f.Add("time", "Hora no válida (HH:MM).")
	}
	if duration <= 0 || duration > validation.MaxDuration {
		f.Add("duration", "La duración debe estar entre 1 y 480 minutos.")
	}
	if err := f.Err(); err != nil {
		return availability.Result{}, err
	}

	r, err := s.resolver(ctx, s.conn, date, date)
	if err != nil {
		return availability.Result{}, err
	}
	res, err := r.Check(date, startTime, duration)
	if err != nil {
		return availability.Result{}, apperr.BadRequest(err.Error())
	}
	if res.Available() && s.inPast(date, start) {
		res.Status = availability.StatusUnavailable
		res.Reason = reasonPast
	}
	s.metrics.ObserveSlotCheck(string(res.Status))
	span.SetAttributes(attribute.String("status", string(res.Status)))
	return res, nil
}

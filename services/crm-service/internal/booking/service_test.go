package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/consultcrm/libs/metrics"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/apperr"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/availability"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/payments"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/validation"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ruleCols = []string{
		"id", "date", "day_of_week", "start_time", "end_time", "is_available", "is_recurring",
		"recurring_pattern", "recurrence_end", "created_at", "updated_at",
	}
	blockCols = []string{"id", "start_date", "end_date", "start_time", "end_time", "is_all_day", "reason", "created_at"}
	apptCols  = []string{
		"id", "client_id", "consultation_id", "client_name", "client_email", "plan_type",
		"date", "start_minute", "end_minute", "duration", "status", "notes", "cancel_reason",
		"created_at", "updated_at",
	}
	clientCols = []string{"id", "name", "email", "phone", "company", "status", "source", "notes", "tags", "created_at", "updated_at"}
	planCols   = []string{
		"id", "type", "name", "description", "duration", "price_cents", "currency", "features",
		"is_active", "sort_order", "created_at", "updated_at",
	}
	stamp = time.Date(2024, 2, 20, 9, 0, 0, 0, time.UTC)
)

type recordedChange struct {
	topic, changeType, id string
}

type fakeLive struct {
	mu      sync.Mutex
	changes []recordedChange
}

func (f *fakeLive) Publish(_ context.Context, topic, changeType, id string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, recordedChange{topic, changeType, id})
}

type fakeCheckout struct {
	calls []payments.CheckoutRequest
}

func (f *fakeCheckout) CreateCheckout(_ context.Context, req payments.CheckoutRequest) (payments.CheckoutSession, error) {
	f.calls = append(f.calls, req)
	return payments.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/cs_1"}, nil
}

func newTestService(t *testing.T, now time.Time, deps Deps) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	deps.Now = func() time.Time { return now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(mock, logger, Config{Location: time.UTC, StartHour: 9, EndHour: 18, IntervalMinutes: 30}, deps)
	return svc, mock
}

func mondayRule() *pgxmock.Rows {
	dow := int16(1)
	return pgxmock.NewRows(ruleCols).
		AddRow("rule-1", "", &dow, "09:00", "17:00", true, true, "", "", stamp, stamp)
}

func noBlocks() *pgxmock.Rows { return pgxmock.NewRows(blockCols) }

func noAppointments() *pgxmock.Rows { return pgxmock.NewRows(apptCols) }

func appointmentAt(id, date string, start, end int) *pgxmock.Rows {
	return pgxmock.NewRows(apptCols).AddRow(
		id, "client-9", "", "Otro", "otro@example.com", "30min",
		date, start, end, end-start, "scheduled", "", "", stamp, stamp,
	)
}

func expectSnapshot(mock pgxmock.PgxPoolIface, from, to string, rules, blocks, appts *pgxmock.Rows) {
	mock.ExpectQuery("FROM availability").WithArgs(from, to).WillReturnRows(rules)
	mock.ExpectQuery("FROM blocked_periods").WithArgs(from, to).WillReturnRows(blocks)
	mock.ExpectQuery("FROM appointments").WithArgs(from, to).WillReturnRows(appts)
}

func appError(t *testing.T, err error) *apperr.Error {
	t.Helper()
	var e *apperr.Error
	require.True(t, errors.As(err, &e), "expected *apperr.Error, got %T: %v", err, err)
	return e
}

var beforeMarch = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func TestCheckScenarios(t *testing.T) {
	cases := []struct {
		name     string
		start    string
		duration int
		blocks   func() *pgxmock.Rows
		appts    func() *pgxmock.Rows
		want     availability.Status
	}{
		{"free slot inside the window", "10:00", 30, noBlocks, noAppointments, availability.StatusAvailable},
		{"overlapping appointment", "10:00", 30, noBlocks, func() *pgxmock.Rows { return appointmentAt("a1", "2024-03-04", 600, 630) }, availability.StatusBusy},
		{"adjacent appointment", "10:30", 30, noBlocks, func() *pgxmock.Rows { return appointmentAt("a1", "2024-03-04", 600, 630) }, availability.StatusAvailable},
		{"full day block", "10:00", 30, func() *pgxmock.Rows {
			return pgxmock.NewRows(blockCols).AddRow("b1", "2024-03-04", "2024-03-04", "", "", true, "Vacaciones", stamp)
		}, noAppointments, availability.StatusBlocked},
		{"runs past the window", "16:30", 60, noBlocks, noAppointments, availability.StatusUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, mock := newTestService(t, beforeMarch, Deps{})
			expectSnapshot(mock, "2024-03-04", "2024-03-04", mondayRule(), tc.blocks(), tc.appts())

			res, err := svc.Check(context.Background(), "2024-03-04", tc.start, tc.duration)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Status)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCheckSkipsMalformedRule(t *testing.T) {
	dow := int16(1)
	svc, mock := newTestService(t, beforeMarch, Deps{})
	rules := mondayRule().AddRow("rule-bad", "", &dow, "17:00", "09:00", true, true, "", "", stamp, stamp)
	expectSnapshot(mock, "2024-03-04", "2024-03-04", rules, noBlocks(), noAppointments())

	res, err := svc.Check(context.Background(), "2024-03-04", "10:00", 30)
	require.NoError(t, err)
	assert.Equal(t, availability.StatusAvailable, res.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckRejectsMalformedInput(t *testing.T) {
	svc, _ := newTestService(t, beforeMarch, Deps{})
	_, err := svc.Check(context.Background(), "04/03/2024", "25:00", 0)
	e := appError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, e.Status())
	assert.Contains(t, e.Fields, "date")
	assert.Contains(t, e.Fields, "time")
	assert.Contains(t, e.Fields, "duration")
}

func TestSlotsReportsStartedSlotsUnavailable(t *testing.T) {
	now := time.Date(2024, 3, 4, 10, 5, 0, 0, time.UTC)
	svc, mock := newTestService(t, now, Deps{})
	svc.cfg.EndHour = 12
	svc.cfg.IntervalMinutes = 60
	expectSnapshot(mock, "2024-03-04", "2024-03-04", mondayRule(), noBlocks(), noAppointments())

	all, err := svc.Slots(context.Background(), "2024-03-04", 60, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, availability.StatusUnavailable, all[0].Status)
	assert.Equal(t, reasonPast, all[1].Reason)
	assert.Equal(t, availability.StatusAvailable, all[2].Status)

	expectSnapshot(mock, "2024-03-04", "2024-03-04", mondayRule(), noBlocks(), noAppointments())
	free, err := svc.Slots(context.Background(), "2024-03-04", 60, true)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.Equal(t, "11:00", free[0].StartTime)
}

func TestCalendarHidesPastDays(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	svc, mock := newTestService(t, now, Deps{})
	expectSnapshot(mock, "2024-03-01", "2024-03-31", mondayRule(), noBlocks(), noAppointments())

	days, err := svc.Calendar(context.Background(), "2024-03", 30)
	require.NoError(t, err)
	require.Len(t, days, 31)
	assert.Equal(t, availability.DayNone, days[3].Status, "Monday 4th is in the past")
	assert.Zero(t, days[3].AvailableSlots)
	assert.Equal(t, availability.DayAvailable, days[17].Status, "Monday 18th is bookable")
	assert.Equal(t, availability.DayNone, days[18].Status, "Tuesday has no rule")
}

func expectClient(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery("FROM clients WHERE id").WithArgs("client-1").
		WillReturnRows(pgxmock.NewRows(clientCols).AddRow(
			"client-1", "Ana", "ana@example.com", "", "", "active", "", "", []string{}, stamp, stamp,
		))
}

func TestBookInsertsUnderDateLockAndEmitsEvent(t *testing.T) {
	hub := &fakeLive{}
	svc, mock := newTestService(t, beforeMarch, Deps{Live: hub})

	mock.ExpectBegin()
	expectClient(mock)
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("2024-03-04").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	expectSnapshot(mock, "2024-03-04", "2024-03-04", mondayRule(), noBlocks(), noAppointments())
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs("client-1", pgxmock.AnyArg(), "Ana", "ana@example.com", "30min", "2024-03-04", 600, 630, 30, "scheduled", "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("appt-1", stamp, stamp))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("appointment", "appt-1", "crm.appointment.scheduled.v1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	a, err := svc.Book(context.Background(), model.Appointment{
		ClientID: "client-1", PlanType: model.Plan30Min, Date: "2024-03-04", StartTime: "10:00", Duration: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, "appt-1", a.ID)
	assert.Equal(t, "10:30", a.EndTime)
	assert.Equal(t, "Ana", a.ClientName)
	assert.Equal(t, []recordedChange{{"appointments", "appointment.created", "appt-1"}}, hub.changes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookBusySlotIsConflict(t *testing.T) {
	hub := &fakeLive{}
	svc, mock := newTestService(t, beforeMarch, Deps{Live: hub})

	mock.ExpectBegin()
	expectClient(mock)
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("2024-03-04").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	expectSnapshot(mock, "2024-03-04", "2024-03-04", mondayRule(), noBlocks(), appointmentAt("a-other", "2024-03-04", 600, 660))
	mock.ExpectRollback()

	_, err := svc.Book(context.Background(), model.Appointment{
		ClientID: "client-1", Date: "2024-03-04", StartTime: "10:30", Duration: 30,
	})
	e := appError(t, err)
	assert.Equal(t, http.StatusConflict, e.Status())
	assert.Equal(t, "Otra reserva ocupa este horario.", e.Fields["startTime"])
	assert.Empty(t, hub.changes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookLosingRaceMapsExclusionViolation(t *testing.T) {
	svc, mock := newTestService(t, beforeMarch, Deps{})

	mock.ExpectBegin()
	expectClient(mock)
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("2024-03-04").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	expectSnapshot(mock, "2024-03-04", "2024-03-04", mondayRule(), noBlocks(), noAppointments())
	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "appointments_no_overlap"})
	mock.ExpectRollback()

	_, err := svc.Book(context.Background(), model.Appointment{
		ClientID: "client-1", Date: "2024-03-04", StartTime: "10:00", Duration: 30,
	})
	e := appError(t, err)
	assert.Equal(t, "booking/slot-unavailable", e.Code)
	assert.Contains(t, e.Fields, "startTime")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookOutsideWindowIsValidationError(t *testing.T) {
	svc, mock := newTestService(t, beforeMarch, Deps{})

	mock.ExpectBegin()
	expectClient(mock)
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("2024-03-05").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	expectSnapshot(mock, "2024-03-05", "2024-03-05", mondayRule(), noBlocks(), noAppointments())
	mock.ExpectRollback()

	_, err := svc.Book(context.Background(), model.Appointment{
		ClientID: "client-1", Date: "2024-03-05", StartTime: "10:00", Duration: 30,
	})
	e := appError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, e.Status())
	assert.Contains(t, e.Fields, "startTime")
	require.NoError(t, mock.ExpectationsWereMet())
}

func appointmentRow(status string) *pgxmock.Rows {
	return pgxmock.NewRows(apptCols).AddRow(
		"appt-1", "client-1", "", "Ana", "ana@example.com", "30min",
		"2024-03-04", 600, 630, 30, status, "", "", stamp, stamp,
	)
}

func TestUpdateStatusCancelsAndEmits(t *testing.T) {
	hub := &fakeLive{}
	svc, mock := newTestService(t, beforeMarch, Deps{Live: hub})
	changed := stamp.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("appt-1").WillReturnRows(appointmentRow("confirmed"))
	mock.ExpectQuery("UPDATE appointments").WithArgs("appt-1", "cancelled", "viaje").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(changed))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("appointment", "appt-1", "crm.appointment.status_changed.v1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	a, err := svc.UpdateStatus(context.Background(), "appt-1", model.AppointmentCancelled, "viaje")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentCancelled, a.Status)
	assert.Equal(t, "viaje", a.CancelReason)
	assert.Equal(t, changed, a.UpdatedAt)
	assert.Len(t, hub.changes, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	svc, mock := newTestService(t, beforeMarch, Deps{})

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("appt-1").WillReturnRows(appointmentRow("completed"))
	mock.ExpectRollback()

	_, err := svc.UpdateStatus(context.Background(), "appt-1", model.AppointmentScheduled, "")
	assert.Equal(t, "appointment/invalid-transition", appError(t, err).Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func planRow(typ string, duration int, price int64) *pgxmock.Rows {
	return pgxmock.NewRows(planCols).AddRow(
		"plan-"+typ, typ, "Consulta "+typ, "", duration, price, "eur", []string{}, true, 1, stamp, stamp,
	)
}

func expectNewIdempotencyKey(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery("FROM idempotency_keys").WithArgs("consultation:user-1", "key-1").WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO idempotency_keys").WithArgs("consultation:user-1", "key-1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("FROM idempotency_keys").WithArgs("consultation:user-1", "key-1").
		WillReturnRows(pgxmock.NewRows([]string{"resource_id", "status_code", "response_payload"}).AddRow("", 0, []byte(nil)))
}

func expectClientUpsert(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery("ON CONFLICT \\(email\\)").
		WithArgs("Ana", "ana@example.com", "", "", "lead", funnelSource).
		WillReturnRows(pgxmock.NewRows(clientCols).AddRow(
			"client-1", "Ana", "ana@example.com", "", "", "lead", funnelSource, "", []string{}, stamp, stamp,
		))
}

var ana = Applicant{UserID: "user-1", Name: "Ana", Email: "ana@example.com"}

func TestSubmitFreePlanStoresConsultationOnly(t *testing.T) {
	hub := &fakeLive{}
	checkout := &fakeCheckout{}
	svc, mock := newTestService(t, beforeMarch, Deps{Live: hub, Checkout: checkout})

	mock.ExpectQuery("FROM plans WHERE type").WithArgs("free").WillReturnRows(planRow("free", 0, 0))
	mock.ExpectBegin()
	expectNewIdempotencyKey(mock)
	expectClientUpsert(mock)
	mock.ExpectQuery("INSERT INTO consultations").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("cons-1", stamp, stamp))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("consultation", "cons-1", "crm.consultation.created.v1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE idempotency_keys").
		WithArgs("consultation:user-1", "key-1", "cons-1", http.StatusCreated, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	res, err := svc.Submit(context.Background(), ana, validation.ConsultationRequest{
		ProblemDescription: "Necesito ayuda con mi web",
		PlanType:           "free",
	}, "key-1")
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Nil(t, res.Appointment)
	assert.Equal(t, model.PaymentNotRequired, res.Consultation.PaymentStatus)
	assert.Empty(t, res.CheckoutURL)
	assert.Empty(t, checkout.calls, "free plans never reach the payment provider")
	assert.Equal(t, []recordedChange{{"consultations", "consultation.created", "cons-1"}}, hub.changes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitTimedPaidPlanBooksAndOpensCheckout(t *testing.T) {
	checkout := &fakeCheckout{}
	svc, mock := newTestService(t, beforeMarch, Deps{Checkout: checkout})

	mock.ExpectQuery("FROM plans WHERE type").WithArgs("60min").WillReturnRows(planRow("60min", 60, 8000))
	mock.ExpectBegin()
	expectClientUpsert(mock)
	mock.ExpectQuery("INSERT INTO consultations").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("cons-1", stamp, stamp))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("2024-03-04").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	expectSnapshot(mock, "2024-03-04", "2024-03-04", mondayRule(), noBlocks(), noAppointments())
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs("client-1", "cons-1", "Ana", "ana@example.com", "60min", "2024-03-04", 600, 660, 60, "scheduled", "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("appt-1", stamp, stamp))
	mock.ExpectExec("SET appointment_id").WithArgs("cons-1", "appt-1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("appointment", "appt-1", "crm.appointment.scheduled.v1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs("consultation", "cons-1", "crm.consultation.created.v1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM plans WHERE type").WithArgs("60min").WillReturnRows(planRow("60min", 60, 8000))
	mock.ExpectExec("SET checkout_session_id").WithArgs("cons-1", "cs_1").WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	res, err := svc.Submit(context.Background(), ana, validation.ConsultationRequest{
		ProblemDescription: "Quiero revisar mi contrato",
		PlanType:           "60min",
		PreferredDate:      "2024-03-04",
		PreferredTime:      "10:00",
	}, "")
	require.NoError(t, err)
	require.NotNil(t, res.Appointment)
	assert.Equal(t, "11:00", res.Appointment.EndTime)
	assert.Equal(t, "appt-1", res.Consultation.AppointmentID)
	assert.Equal(t, model.PaymentPending, res.Consultation.PaymentStatus)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_1", res.CheckoutURL)
	require.Len(t, checkout.calls, 1)
	assert.Equal(t, int64(8000), checkout.calls[0].AmountCents)
	assert.Equal(t, "Consulta 60min", checkout.calls[0].PlanName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitReplaysIdempotentResponse(t *testing.T) {
	hub := &fakeLive{}
	svc, mock := newTestService(t, beforeMarch, Deps{Live: hub})
	stored, err := json.Marshal(SubmitResult{Consultation: model.Consultation{ID: "cons-1", PlanType: model.PlanFree}})
	require.NoError(t, err)

	mock.ExpectQuery("FROM plans WHERE type").WithArgs("free").WillReturnRows(planRow("free", 0, 0))
	mock.ExpectBegin()
	mock.ExpectQuery("FROM idempotency_keys").WithArgs("consultation:user-1", "key-1").
		WillReturnRows(pgxmock.NewRows([]string{"resource_id", "status_code", "response_payload"}).AddRow("cons-1", 201, stored))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM consultations WHERE id").WithArgs("cons-1").WillReturnError(pgx.ErrNoRows)

	res, err := svc.Submit(context.Background(), ana, validation.ConsultationRequest{
		ProblemDescription: "Necesito ayuda con mi web",
		PlanType:           "free",
	}, "key-1")
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, "cons-1", res.Consultation.ID)
	assert.Empty(t, hub.changes, "a replay must not announce a new consultation")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitRejectsPastSlot(t *testing.T) {
	svc, mock := newTestService(t, time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC), Deps{})
	mock.ExpectQuery("FROM plans WHERE type").WithArgs("30min").WillReturnRows(planRow("30min", 30, 4500))

	_, err := svc.Submit(context.Background(), ana, validation.ConsultationRequest{
		ProblemDescription: "Quiero revisar mi contrato",
		PlanType:           "30min",
		PreferredDate:      "2024-03-04",
		PreferredTime:      "10:00",
	}, "")
	assert.Contains(t, appError(t, err).Fields, "preferredTime")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitValidatesBeforeTouchingStorage(t *testing.T) {
	svc, mock := newTestService(t, beforeMarch, Deps{})
	_, err := svc.Submit(context.Background(), ana, validation.ConsultationRequest{PlanType: "60min"}, "")
	e := appError(t, err)
	assert.Contains(t, e.Fields, "problemDescription")
	assert.Contains(t, e.Fields, "preferredDate")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitKeepsPlanLabelsBounded(t *testing.T) {
	reg := prometheus.NewRegistry()
	svc, mock := newTestService(t, beforeMarch, Deps{Metrics: metrics.NewBookingMetrics(reg)})
	for i := 0; i < 50; i++ {
		_, err := svc.Submit(context.Background(), ana, validation.ConsultationRequest{
			ProblemDescription: "Quiero revisar mi contrato",
			PlanType:           fmt.Sprintf("junk-%d", i),
		}, "")
		require.Error(t, err)
	}
	n, err := testutil.GatherAndCount(reg, "consultcrm_booking_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "invalid", planLabel(" junk "))
	assert.Equal(t, "60min", planLabel(" 60min "))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfirmPaymentIgnoresReplayedWebhook(t *testing.T) {
	hub := &fakeLive{}
	svc, mock := newTestService(t, beforeMarch, Deps{Live: hub})

	mock.ExpectBegin()
	mock.ExpectExec("SET payment_status = 'paid'").WithArgs("cons-1", "cs_1").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectCommit()

	err := svc.ConfirmPayment(context.Background(), payments.Completion{ConsultationID: "cons-1", SessionID: "cs_1"})
	require.NoError(t, err)
	assert.Empty(t, hub.changes)
	require.NoError(t, mock.ExpectationsWereMet())
}

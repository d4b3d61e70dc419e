package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/availability"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

const appointmentColumns = `
	id, client_id, COALESCE(consultation_id::text, ''), client_name, client_email, plan_type,
	to_char(date, 'YYYY-MM-DD'), start_minute, end_minute, duration, status, notes, cancel_reason,
	created_at, updated_at`

type AppointmentRepository struct {
	db db.DBTX
}

func NewAppointmentRepository(conn db.DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: conn}
}

// WithTx returns a repository bound to tx.
func (r *AppointmentRepository) WithTx(tx db.DBTX) *AppointmentRepository {
	return &AppointmentRepository{db: tx}
}

// LockDate serializes bookings for one calendar date until the surrounding
// transaction ends.
func (r *AppointmentRepository) LockDate(ctx context.Context, date string) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('appointments:' || $1))`, date)
	return err
}

func scanAppointment(row scanner) (model.Appointment, error) {
	var a model.Appointment
	var start, end int
	var status, plan string
	if err := row.Scan(
		&a.ID,
		&a.ClientID,
		&a.ConsultationID,
		&a.ClientName,
		&a.ClientEmail,
		&plan,
		&a.Date,
		&start,
		&end,
		&a.Duration,
		&status,
		&a.Notes,
		&a.CancelReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return model.Appointment{}, err
	}
	st, ok := model.ParseAppointmentStatus(status)
	if !ok {
		return model.Appointment{}, corrupt("appointment", a.ID, "status %q", status)
	}
	a.Status = st
	if plan != "" {
		pt, ok := model.ParsePlanType(plan)
		if !ok {
			return model.Appointment{}, corrupt("appointment", a.ID, "plan %q", plan)
		}
		a.PlanType = pt
	}
	if start < 0 || end > int(availability.EndOfDay) || end != start+a.Duration {
		return model.Appointment{}, corrupt("appointment", a.ID, "span %d-%d for %d minutes", start, end, a.Duration)
	}
	a.StartTime = availability.Clock(start).String()
	a.EndTime = availability.Clock(end).String()
	return a, nil
}

// Insert stores a validated appointment and fills ID and timestamps. An
// overlapping active appointment surfaces as an exclusion violation.
func (r *AppointmentRepository) Insert(ctx context.Context, a *model.Appointment) error {
	start, err := availability.ParseClock(a.StartTime)
	if err != nil {
		return err
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO appointments
			(client_id, consultation_id, client_name, client_email, plan_type, date,
			 start_minute, end_minute, duration, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`, a.ClientID, nullIfEmpty(a.ConsultationID), a.ClientName, a.ClientEmail, string(a.PlanType), a.Date,
		int(start), int(start)+a.Duration, a.Duration, string(a.Status), a.Notes,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	return scanAppointment(r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	return scanAppointment(r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status model.AppointmentStatus, reason string) (time.Time, error) {
	var updatedAt time.Time
	err := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
			cancel_reason = CASE WHEN $2 = 'cancelled' THEN $3 ELSE cancel_reason END,
			updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, id, string(status), reason).Scan(&updatedAt)
	return updatedAt, err
}

func (r *AppointmentRepository) UpdateNotes(ctx context.Context, id, notes string) error {
	tag, err := r.db.Exec(ctx, `UPDATE appointments SET notes = $2, updated_at = now() WHERE id = $1`, id, notes)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

// ListOnDate returns every appointment on date, including cancelled ones.
func (r *AppointmentRepository) ListOnDate(ctx context.Context, date string) ([]model.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date = $1
		ORDER BY start_minute ASC
	`, date)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointment)
}

// ListBetween returns appointments with from <= date <= to.
func (r *AppointmentRepository) ListBetween(ctx context.Context, from, to string) ([]model.Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date BETWEEN $1 AND $2
		ORDER BY date ASC, start_minute ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointment)
}

type AppointmentFilter struct {
	Status   model.AppointmentStatus
	ClientID string
	From     string
	To       string
	Page     Page
}

func (r *AppointmentRepository) List(ctx context.Context, f AppointmentFilter) ([]model.Appointment, error) {
	var w where
	if f.Status != "" {
		w.add("status = $%d", string(f.Status))
	}
	if f.ClientID != "" {
		w.add("client_id = $%d", f.ClientID)
	}
	if f.From != "" {
		w.add("date >= $%d", f.From)
	}
	if f.To != "" {
		w.add("date <= $%d", f.To)
	}
	filter := w.String()
	limit := w.paginate(f.Page)
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		`+filter+`
		ORDER BY date DESC, start_minute DESC
		`+limit, w.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAppointment)
}

package storage

import (
	"context"

	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

const consultationColumns = `
	id, client_id, COALESCE(user_id::text, ''), client_name, client_email, client_phone, company,
	problem_description, plan_type, COALESCE(to_char(preferred_date, 'YYYY-MM-DD'), ''), preferred_time,
	COALESCE(appointment_id::text, ''), status, payment_status, checkout_session_id, amount_cents, currency,
	notes, created_at, updated_at`

type ConsultationRepository struct {
	db db.DBTX
}

func NewConsultationRepository(conn db.DBTX) *ConsultationRepository {
	return &ConsultationRepository{db: conn}
}

func (r *ConsultationRepository) WithTx(tx db.DBTX) *ConsultationRepository {
	return &ConsultationRepository{db: tx}
}

func scanConsultation(row scanner) (model.Consultation, error) {
	var c model.Consultation
	var plan, status, payment string
	if err := row.Scan(
		&c.ID,
		&c.ClientID,
		&c.UserID,
		&c.ClientName,
		&c.ClientEmail,
		&c.ClientPhone,
		&c.Company,
		&c.ProblemDescription,
		&plan,
		&c.PreferredDate,
		&c.PreferredTime,
		&c.AppointmentID,
		&status,
		&payment,
		&c.CheckoutSessionID,
		&c.AmountCents,
		&c.Currency,
		&c.Notes,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return model.Consultation{}, err
	}
	pt, ok := model.ParsePlanType(plan)
	if !ok {
		return model.Consultation{}, corrupt("consultation", c.ID, "plan %q", plan)
	}
	c.PlanType = pt
	st, ok := model.ParseConsultationStatus(status)
	if !ok {
		return model.Consultation{}, corrupt("consultation", c.ID, "status %q", status)
	}
	c.Status = st
	switch ps := model.PaymentStatus(payment); ps {
	case model.PaymentNotRequired, model.PaymentPending, model.PaymentPaid:
		c.PaymentStatus = ps
	default:
		return model.Consultation{}, corrupt("consultation", c.ID, "payment status %q", payment)
	}
	return c, nil
}

func (r *ConsultationRepository) Insert(ctx context.Context, c *model.Consultation) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO consultations
			(client_id, user_id, client_name, client_email, client_phone, company, problem_description,
			 plan_type, preferred_date, preferred_time, appointment_id, status, payment_status,
			 amount_cents, currency, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`, c.ClientID, nullIfEmpty(c.UserID), c.ClientName, c.ClientEmail, c.ClientPhone, c.Company, c.ProblemDescription,
		string(c.PlanType), nullIfEmpty(c.PreferredDate), c.PreferredTime, nullIfEmpty(c.AppointmentID),
		string(c.Status), string(c.PaymentStatus), c.AmountCents, c.Currency, c.Notes,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *ConsultationRepository) Get(ctx context.Context, id string) (model.Consultation, error) {
	return scanConsultation(r.db.QueryRow(ctx, `SELECT `+consultationColumns+` FROM consultations WHERE id = $1`, id))
}

type ConsultationFilter struct {
	Status   model.ConsultationStatus
	PlanType model.PlanType
	ClientID string
	// Query matches name, email or problem description.
	Query string
	Page  Page
}

func (r *ConsultationRepository) List(ctx context.Context, f ConsultationFilter) ([]model.Consultation, error) {
	var w where
	if f.Status != "" {
		w.add("status = $%d", string(f.Status))
	}
	if f.PlanType != "" {
		w.add("plan_type = $%d", string(f.PlanType))
	}
	if f.ClientID != "" {
		w.add("client_id = $%d", f.ClientID)
	}
	if f.Query != "" {
		w.add("(client_name ILIKE $%[1]d OR client_email ILIKE $%[1]d OR problem_description ILIKE $%[1]d)", likePattern(f.Query))
	}
	filter := w.String()
	limit := w.paginate(f.Page)
	rows, err := r.db.Query(ctx, `
		SELECT `+consultationColumns+`
		FROM consultations
		`+filter+`
		ORDER BY created_at DESC
		`+limit, w.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanConsultation)
}

// Update writes the admin-editable fields.
func (r *ConsultationRepository) Update(ctx context.Context, id string, status model.ConsultationStatus, notes string) (model.Consultation, error) {
	return scanConsultation(r.db.QueryRow(ctx, `
		UPDATE consultations
		SET status = $2, notes = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+consultationColumns, id, string(status), notes))
}

func (r *ConsultationRepository) SetAppointment(ctx context.Context, id, appointmentID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE consultations
		SET appointment_id = $2, updated_at = now()
		WHERE id = $1
	`, id, appointmentID)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

func (r *ConsultationRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE consultations
		SET checkout_session_id = $2, updated_at = now()
		WHERE id = $1
	`, id, sessionID)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

// MarkPaid flips a pending payment to paid. It reports false when the
// consultation was already paid, so replayed webhooks are no-ops.
func (r *ConsultationRepository) MarkPaid(ctx context.Context, id, sessionID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE consultations
		SET payment_status = 'paid',
			checkout_session_id = CASE WHEN $2 = '' THEN checkout_session_id ELSE $2 END,
			updated_at = now()
		WHERE id = $1 AND payment_status = 'pending'
	`, id, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ConsultationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM consultations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

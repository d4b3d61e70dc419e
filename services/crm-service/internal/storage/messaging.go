package storage

import (
	"context"

	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

// MessagingRepository stores message templates, communication logs and
// follow-ups.
type MessagingRepository struct {
	db db.DBTX
}

func NewMessagingRepository(conn db.DBTX) *MessagingRepository {
	return &MessagingRepository{db: conn}
}

const templateColumns = `id, name, category, subject, body, is_active, created_at, updated_at`

func scanTemplate(row scanner) (model.MessageTemplate, error) {
	var t model.MessageTemplate
	err := row.Scan(&t.ID, &t.Name, &t.Category, &t.Subject, &t.Body, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *MessagingRepository) ListTemplates(ctx context.Context, category string) ([]model.MessageTemplate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+templateColumns+`
		FROM message_templates
		WHERE $1 = '' OR category = $1
		ORDER BY name ASC
	`, category)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTemplate)
}

func (r *MessagingRepository) GetTemplate(ctx context.Context, id string) (model.MessageTemplate, error) {
	return scanTemplate(r.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM message_templates WHERE id = $1`, id))
}

func (r *MessagingRepository) InsertTemplate(ctx context.Context, t *model.MessageTemplate) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO message_templates (name, category, subject, body, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, t.Name, t.Category, t.Subject, t.Body, t.IsActive).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *MessagingRepository) UpdateTemplate(ctx context.Context, t *model.MessageTemplate) error {
	return r.db.QueryRow(ctx, `
		UPDATE message_templates
		SET name = $2, category = $3, subject = $4, body = $5, is_active = $6, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, t.ID, t.Name, t.Category, t.Subject, t.Body, t.IsActive).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *MessagingRepository) DeleteTemplate(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM message_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

const logColumns = `id, client_id, COALESCE(template_id::text, ''), channel, recipient, subject, body, status, error, sent_at, created_at`

func scanLog(row scanner) (model.CommunicationLog, error) {
	var l model.CommunicationLog
	var status string
	if err := row.Scan(&l.ID, &l.ClientID, &l.TemplateID, &l.Channel, &l.Recipient, &l.Subject, &l.Body,
		&status, &l.Error, &l.SentAt, &l.CreatedAt); err != nil {
		return model.CommunicationLog{}, err
	}
	switch st := model.CommunicationStatus(status); st {
	case model.CommunicationQueued, model.CommunicationSent, model.CommunicationFailed:
		l.Status = st
	default:
		return model.CommunicationLog{}, corrupt("communication_log", l.ID, "status %q", status)
	}
	return l, nil
}

func (r *MessagingRepository) InsertLog(ctx context.Context, l *model.CommunicationLog) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO communication_logs (client_id, template_id, channel, recipient, subject, body, status, error, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, l.ClientID, nullIfEmpty(l.TemplateID), l.Channel, l.Recipient, l.Subject, l.Body, string(l.Status), l.Error, l.SentAt,
	).Scan(&l.ID, &l.CreatedAt)
}

func (r *MessagingRepository) ListLogs(ctx context.Context, clientID string, page Page) ([]model.CommunicationLog, error) {
	var w where
	if clientID != "" {
		w.add("client_id = $%d", clientID)
	}
	filter := w.String()
	limit := w.paginate(page)
	rows, err := r.db.Query(ctx, `
		SELECT `+logColumns+`
		FROM communication_logs
		`+filter+`
		ORDER BY created_at DESC
		`+limit, w.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanLog)
}

const followUpColumns = `id, client_id, COALESCE(consultation_id::text, ''), to_char(due_date, 'YYYY-MM-DD'), note, status, notified_at, created_at, updated_at`

func scanFollowUp(row scanner) (model.FollowUp, error) {
	var f model.FollowUp
	var status string
	if err := row.Scan(&f.ID, &f.ClientID, &f.ConsultationID, &f.DueDate, &f.Note, &status,
		&f.NotifiedAt, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return model.FollowUp{}, err
	}
	st, ok := model.ParseFollowUpStatus(status)
	if !ok {
		return model.FollowUp{}, corrupt("follow_up", f.ID, "status %q", status)
	}
	f.Status = st
	return f, nil
}

type FollowUpFilter struct {
	Status    model.FollowUpStatus
	ClientID  string
	DueBefore string
	Page      Page
}

func (r *MessagingRepository) ListFollowUps(ctx context.Context, f FollowUpFilter) ([]model.FollowUp, error) {
	var w where
	if f.Status != "" {
		w.add("status = $%d", string(f.Status))
	}
	if f.ClientID != "" {
		w.add("client_id = $%d", f.ClientID)
	}
	if f.DueBefore != "" {
		w.add("due_date <= $%d", f.DueBefore)
	}
	filter := w.String()
	limit := w.paginate(f.Page)
	rows, err := r.db.Query(ctx, `
		SELECT `+followUpColumns+`
		FROM follow_ups
		`+filter+`
		ORDER BY due_date ASC
		`+limit, w.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanFollowUp)
}

func (r *MessagingRepository) GetFollowUp(ctx context.Context, id string) (model.FollowUp, error) {
	return scanFollowUp(r.db.QueryRow(ctx, `SELECT `+followUpColumns+` FROM follow_ups WHERE id = $1`, id))
}

func (r *MessagingRepository) InsertFollowUp(ctx context.Context, f *model.FollowUp) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO follow_ups (client_id, consultation_id, due_date, note, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`, f.ClientID, nullIfEmpty(f.ConsultationID), f.DueDate, f.Note, string(f.Status)).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
}

func (r *MessagingRepository) UpdateFollowUp(ctx context.Context, f *model.FollowUp) error {
	return r.db.QueryRow(ctx, `
		UPDATE follow_ups
		SET due_date = $2, note = $3, status = $4, updated_at = now()
		WHERE id = $1
		RETURNING client_id, COALESCE(consultation_id::text, ''), created_at, updated_at
	`, f.ID, f.DueDate, f.Note, string(f.Status)).Scan(&f.ClientID, &f.ConsultationID, &f.CreatedAt, &f.UpdatedAt)
}

func (r *MessagingRepository) DeleteFollowUp(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM follow_ups WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

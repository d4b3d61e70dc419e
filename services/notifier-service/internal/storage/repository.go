// Package storage holds the notifier's writes: the communication log shared
// with the CRM dashboard and the follow-up reminder claims.
package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/consultcrm/libs/db"
)

type CommunicationLog struct {
	ClientID  string
	Recipient string
	Subject   string
	Body      string
	Status    string
	Error     string
	SentAt    *time.Time
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// InsertLog records an automatic e-mail on the client's history.
func (r *Repository) InsertLog(ctx context.Context, tx db.DBTX, l CommunicationLog) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO communication_logs (client_id, channel, recipient, subject, body, status, error, sent_at)
		VALUES ($1, 'email', $2, $3, $4, $5, $6, $7)
	`, l.ClientID, l.Recipient, l.Subject, l.Body, l.Status, l.Error, l.SentAt)
	return err
}

type DueFollowUp struct {
	ID          string
	ClientID    string
	ClientName  string
	ClientEmail string
	DueDate     string
	Note        string
}

// ClaimDueFollowUps stamps notified_at on pending follow-ups due on or before
// today that were not reminded today yet, and returns them. today and the
// reminder date are both civil dates in the IANA zone tz. Rows locked by a
// concurrent sweep are skipped.
func (r *Repository) ClaimDueFollowUps(ctx context.Context, tx db.DBTX, today, tz string, limit int) ([]DueFollowUp, error) {
	rows, err := tx.Query(ctx, `
		WITH due AS (
			SELECT id
			FROM follow_ups
			WHERE status = 'pending'
			  AND due_date <= $1::date
			  AND (notified_at IS NULL OR (notified_at AT TIME ZONE $3)::date < $1::date)
			ORDER BY due_date ASC, created_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE follow_ups f
		SET notified_at = now()
		FROM due, clients c
		WHERE f.id = due.id AND c.id = f.client_id
		RETURNING f.id, f.client_id, c.name, c.email, to_char(f.due_date, 'YYYY-MM-DD'), f.note
	`, today, limit, tz)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DueFollowUp
	for rows.Next() {
		var f DueFollowUp
		if err := rows.Scan(&f.ID, &f.ClientID, &f.ClientName, &f.ClientEmail, &f.DueDate, &f.Note); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

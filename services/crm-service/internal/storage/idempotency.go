package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/consultcrm/libs/db"
)

// IdempotencyRecord remembers the response to a keyed request so a retried
// submission replays it instead of booking twice.
type IdempotencyRecord struct {
	Scope           string
	Key             string
	ResourceID      string
	StatusCode      int
	ResponsePayload []byte
}

// Completed reports whether the first request finished and stored a response.
func (r IdempotencyRecord) Completed() bool { return r.StatusCode != 0 }

type IdempotencyRepository struct {
	db db.DBTX
}

func NewIdempotencyRepository(conn db.DBTX) *IdempotencyRepository {
	return &IdempotencyRepository{db: conn}
}

func (r *IdempotencyRepository) WithTx(tx db.DBTX) *IdempotencyRepository {
	return &IdempotencyRepository{db: tx}
}

// Lock claims (scope, key) for the current transaction. found is true when the
// key already existed; the record then carries any stored response.
func (r *IdempotencyRepository) Lock(ctx context.Context, scope, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectForUpdate(ctx, scope, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	if _, err := r.db.Exec(ctx, `
		INSERT INTO idempotency_keys (scope, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (scope, idempotency_key) DO NOTHING
	`, scope, key); err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectForUpdate(ctx, scope, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *IdempotencyRepository) selectForUpdate(ctx context.Context, scope, key string) (IdempotencyRecord, error) {
	rec := IdempotencyRecord{Scope: scope, Key: key}
	err := r.db.QueryRow(ctx, `
		SELECT resource_id, status_code, response_payload
		FROM idempotency_keys
		WHERE scope = $1 AND idempotency_key = $2
		FOR UPDATE
	`, scope, key).Scan(&rec.ResourceID, &rec.StatusCode, &rec.ResponsePayload)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	return rec, nil
}

func (r *IdempotencyRepository) Finalize(ctx context.Context, rec IdempotencyRecord) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE idempotency_keys
		SET resource_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE scope = $1 AND idempotency_key = $2
	`, rec.Scope, rec.Key, rec.ResourceID, rec.StatusCode, rec.ResponsePayload)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

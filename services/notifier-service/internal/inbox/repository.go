package inbox

import (
	"context"

	"github.com/md-rashed-zaman/consultcrm/libs/db"
)

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Record marks an event as handled inside tx. It returns false when the event
// was already recorded, so the caller can skip it.
func (r *Repository) Record(ctx context.Context, tx db.DBTX, eventID, eventType string) (bool, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if db.IsUniqueViolation(err) {
		return false, nil
	}
	return false, err
}

package storage

import (
	"context"

	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

const ruleColumns = `
	id, COALESCE(to_char(date, 'YYYY-MM-DD'), ''), day_of_week, start_time, end_time,
	is_available, is_recurring, recurring_pattern, COALESCE(to_char(recurrence_end, 'YYYY-MM-DD'), ''),
	created_at, updated_at`

const blockColumns = `
	id, to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'), start_time, end_time,
	is_all_day, reason, created_at`

// AvailabilityRepository stores availability rules and blocked periods.
type AvailabilityRepository struct {
	db db.DBTX
}

func NewAvailabilityRepository(conn db.DBTX) *AvailabilityRepository {
	return &AvailabilityRepository{db: conn}
}

func (r *AvailabilityRepository) WithTx(tx db.DBTX) *AvailabilityRepository {
	return &AvailabilityRepository{db: tx}
}

func scanRule(row scanner) (model.AvailabilitySlot, error) {
	var s model.AvailabilitySlot
	var dow *int16
	if err := row.Scan(
		&s.ID,
		&s.Date,
		&dow,
		&s.StartTime,
		&s.EndTime,
		&s.IsAvailable,
		&s.IsRecurring,
		&s.RecurringPattern,
		&s.RecurrenceEnd,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return model.AvailabilitySlot{}, err
	}
	if dow != nil {
		d := int(*dow)
		s.DayOfWeek = &d
	}
	if err := checkClock("availability", s.ID, "start_time", s.StartTime); err != nil {
		return model.AvailabilitySlot{}, err
	}
	if err := checkClock("availability", s.ID, "end_time", s.EndTime); err != nil {
		return model.AvailabilitySlot{}, err
	}
	return s, nil
}

func dayOfWeekArg(d *int) any {
	if d == nil {
		return nil
	}
	return int16(*d)
}

// ListRulesOn returns the rules that can apply to date: one-off rules for that
// date and recurring rules whose window includes it.
func (r *AvailabilityRepository) ListRulesOn(ctx context.Context, date string) ([]model.AvailabilitySlot, error) {
	return r.ListRulesBetween(ctx, date, date)
}

// ListRulesBetween returns rules that can apply to any date in [from, to].
func (r *AvailabilityRepository) ListRulesBetween(ctx context.Context, from, to string) ([]model.AvailabilitySlot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability
		WHERE (NOT is_recurring AND date BETWEEN $1 AND $2)
			OR (is_recurring
				AND (date IS NULL OR date <= $2)
				AND (recurrence_end IS NULL OR recurrence_end >= $1))
		ORDER BY start_time ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRule)
}

func (r *AvailabilityRepository) ListRules(ctx context.Context) ([]model.AvailabilitySlot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability
		ORDER BY is_recurring DESC, day_of_week ASC NULLS LAST, date ASC NULLS LAST, start_time ASC
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanRule)
}

func (r *AvailabilityRepository) GetRule(ctx context.Context, id string) (model.AvailabilitySlot, error) {
	return scanRule(r.db.QueryRow(ctx, `SELECT `+ruleColumns+` FROM availability WHERE id = $1`, id))
}

func (r *AvailabilityRepository) InsertRule(ctx context.Context, s *model.AvailabilitySlot) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO availability
			(date, day_of_week, start_time, end_time, is_available, is_recurring, recurring_pattern, recurrence_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, nullIfEmpty(s.Date), dayOfWeekArg(s.DayOfWeek), s.StartTime, s.EndTime, s.IsAvailable, s.IsRecurring,
		s.RecurringPattern, nullIfEmpty(s.RecurrenceEnd),
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *AvailabilityRepository) UpdateRule(ctx context.Context, s *model.AvailabilitySlot) error {
	return r.db.QueryRow(ctx, `
		UPDATE availability
		SET date = $2,
			day_of_week = $3,
			start_time = $4,
			end_time = $5,
			is_available = $6,
			is_recurring = $7,
			recurring_pattern = $8,
			recurrence_end = $9,
			updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, s.ID, nullIfEmpty(s.Date), dayOfWeekArg(s.DayOfWeek), s.StartTime, s.EndTime, s.IsAvailable, s.IsRecurring,
		s.RecurringPattern, nullIfEmpty(s.RecurrenceEnd),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *AvailabilityRepository) DeleteRule(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM availability WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

func scanBlock(row scanner) (model.BlockedPeriod, error) {
	var b model.BlockedPeriod
	if err := row.Scan(
		&b.ID,
		&b.StartDate,
		&b.EndDate,
		&b.StartTime,
		&b.EndTime,
		&b.IsAllDay,
		&b.Reason,
		&b.CreatedAt,
	); err != nil {
		return model.BlockedPeriod{}, err
	}
	if !b.IsAllDay {
		if err := checkClock("blocked_period", b.ID, "start_time", b.StartTime); err != nil {
			return model.BlockedPeriod{}, err
		}
		if err := checkClock("blocked_period", b.ID, "end_time", b.EndTime); err != nil {
			return model.BlockedPeriod{}, err
		}
	}
	return b, nil
}

// ListBlockedBetween returns blocked periods that touch any date in [from, to].
func (r *AvailabilityRepository) ListBlockedBetween(ctx context.Context, from, to string) ([]model.BlockedPeriod, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+blockColumns+`
		FROM blocked_periods
		WHERE start_date <= $2 AND end_date >= $1
		ORDER BY start_date ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBlock)
}

func (r *AvailabilityRepository) ListBlocked(ctx context.Context) ([]model.BlockedPeriod, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+blockColumns+`
		FROM blocked_periods
		ORDER BY start_date DESC
	`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanBlock)
}

func (r *AvailabilityRepository) GetBlocked(ctx context.Context, id string) (model.BlockedPeriod, error) {
	return scanBlock(r.db.QueryRow(ctx, `SELECT `+blockColumns+` FROM blocked_periods WHERE id = $1`, id))
}

func (r *AvailabilityRepository) InsertBlocked(ctx context.Context, b *model.BlockedPeriod) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO blocked_periods (start_date, end_date, start_time, end_time, is_all_day, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, b.StartDate, b.EndDate, b.StartTime, b.EndTime, b.IsAllDay, b.Reason).Scan(&b.ID, &b.CreatedAt)
}

func (r *AvailabilityRepository) UpdateBlocked(ctx context.Context, b *model.BlockedPeriod) error {
	return r.db.QueryRow(ctx, `
		UPDATE blocked_periods
		SET start_date = $2,
			end_date = $3,
			start_time = $4,
			end_time = $5,
			is_all_day = $6,
			reason = $7
		WHERE id = $1
		RETURNING created_at
	`, b.ID, b.StartDate, b.EndDate, b.StartTime, b.EndTime, b.IsAllDay, b.Reason).Scan(&b.CreatedAt)
}

func (r *AvailabilityRepository) DeleteBlocked(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM blocked_periods WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

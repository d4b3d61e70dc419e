package storage

import (
	"context"

	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

const planColumns = `id, type, name, description, duration, price_cents, currency, features, is_active, sort_order, created_at, updated_at`

type PlanRepository struct {
	db db.DBTX
}

func NewPlanRepository(conn db.DBTX) *PlanRepository {
	return &PlanRepository{db: conn}
}

func scanPlan(row scanner) (model.Plan, error) {
	var p model.Plan
	var typ string
	if err := row.Scan(
		&p.ID,
		&typ,
		&p.Name,
		&p.Description,
		&p.Duration,
		&p.PriceCents,
		&p.Currency,
		&p.Features,
		&p.IsActive,
		&p.SortOrder,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return model.Plan{}, err
	}
	pt, ok := model.ParsePlanType(typ)
	if !ok {
		return model.Plan{}, corrupt("plan", p.ID, "type %q", typ)
	}
	p.Type = pt
	if pt.Scheduled() && p.Duration <= 0 {
		return model.Plan{}, corrupt("plan", p.ID, "scheduled plan without duration")
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	return p, nil
}

func (r *PlanRepository) List(ctx context.Context, activeOnly bool) ([]model.Plan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+planColumns+`
		FROM plans
		WHERE is_active OR NOT $1
		ORDER BY sort_order ASC, price_cents ASC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPlan)
}

func (r *PlanRepository) Get(ctx context.Context, id string) (model.Plan, error) {
	return scanPlan(r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
}

func (r *PlanRepository) GetByType(ctx context.Context, t model.PlanType) (model.Plan, error) {
	return scanPlan(r.db.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE type = $1`, string(t)))
}

func (r *PlanRepository) Insert(ctx context.Context, p *model.Plan) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO plans (type, name, description, duration, price_cents, currency, features, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, string(p.Type), p.Name, p.Description, p.Duration, p.PriceCents, p.Currency, p.Features, p.IsActive, p.SortOrder,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PlanRepository) Update(ctx context.Context, p *model.Plan) error {
	return r.db.QueryRow(ctx, `
		UPDATE plans
		SET type = $2, name = $3, description = $4, duration = $5, price_cents = $6, currency = $7,
			features = $8, is_active = $9, sort_order = $10, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, p.ID, string(p.Type), p.Name, p.Description, p.Duration, p.PriceCents, p.Currency, p.Features, p.IsActive, p.SortOrder,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

// Seed inserts plans whose type is not stored yet and returns how many were
// added. Existing rows are never touched.
func (r *PlanRepository) Seed(ctx context.Context, plans []model.Plan) (int, error) {
	added := 0
	for _, p := range plans {
		tag, err := r.db.Exec(ctx, `
			INSERT INTO plans (type, name, description, duration, price_cents, currency, features, is_active, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (type) DO NOTHING
		`, string(p.Type), p.Name, p.Description, p.Duration, p.PriceCents, p.Currency, p.Features, p.IsActive, p.SortOrder)
		if err != nil {
			return added, err
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

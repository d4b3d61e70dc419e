package storage

import (
	"context"

	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

const clientColumns = `id, name, email, phone, company, status, source, notes, tags, created_at, updated_at`

type ClientRepository struct {
	db db.DBTX
}

func NewClientRepository(conn db.DBTX) *ClientRepository {
	return &ClientRepository{db: conn}
}

func (r *ClientRepository) WithTx(tx db.DBTX) *ClientRepository {
	return &ClientRepository{db: tx}
}

func scanClient(row scanner) (model.Client, error) {
	var c model.Client
	var status string
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.Company,
		&status,
		&c.Source,
		&c.Notes,
		&c.Tags,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return model.Client{}, err
	}
	st, ok := model.ParseClientStatus(status)
	if !ok {
		return model.Client{}, corrupt("client", c.ID, "status %q", status)
	}
	c.Status = st
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c, nil
}

// Insert fails with a unique violation when the email is taken.
func (r *ClientRepository) Insert(ctx context.Context, c *model.Client) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO clients (name, email, phone, company, status, source, notes, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, c.Name, c.Email, c.Phone, c.Company, string(c.Status), c.Source, c.Notes, c.Tags,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

// UpsertByEmail creates the client or refreshes the contact details of the
// existing one. Status, notes and tags of an existing client are kept;
// blank incoming phone or company never overwrite stored values.
func (r *ClientRepository) UpsertByEmail(ctx context.Context, c model.Client) (model.Client, error) {
	return scanClient(r.db.QueryRow(ctx, `
		INSERT INTO clients (name, email, phone, company, status, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name,
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), clients.phone),
			company = COALESCE(NULLIF(EXCLUDED.company, ''), clients.company),
			updated_at = now()
		RETURNING `+clientColumns,
		c.Name, c.Email, c.Phone, c.Company, string(c.Status), c.Source))
}

func (r *ClientRepository) Get(ctx context.Context, id string) (model.Client, error) {
	return scanClient(r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
}

func (r *ClientRepository) GetByEmail(ctx context.Context, email string) (model.Client, error) {
	return scanClient(r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE email = $1`, email))
}

type ClientFilter struct {
	Status model.ClientStatus
	Query  string
	Page   Page
}

func (r *ClientRepository) List(ctx context.Context, f ClientFilter) ([]model.Client, error) {
	var w where
	if f.Status != "" {
		w.add("status = $%d", string(f.Status))
	}
	if f.Query != "" {
		w.add("(name ILIKE $%[1]d OR email ILIKE $%[1]d OR company ILIKE $%[1]d)", likePattern(f.Query))
	}
	filter := w.String()
	limit := w.paginate(f.Page)
	rows, err := r.db.Query(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		`+filter+`
		ORDER BY created_at DESC
		`+limit, w.args...)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanClient)
}

func (r *ClientRepository) Update(ctx context.Context, c *model.Client) error {
	return r.db.QueryRow(ctx, `
		UPDATE clients
		SET name = $2, email = $3, phone = $4, company = $5, status = $6, source = $7, notes = $8, tags = $9,
			updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, c.ID, c.Name, c.Email, c.Phone, c.Company, string(c.Status), c.Source, c.Notes, c.Tags,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (r *ClientRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

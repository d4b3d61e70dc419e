package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
)

type UserRepository struct {
	db db.DBTX
}

func NewUserRepository(conn db.DBTX) *UserRepository {
	return &UserRepository{db: conn}
}

func (r *UserRepository) WithTx(tx db.DBTX) *UserRepository {
	return &UserRepository{db: tx}
}

const userColumns = `id, name, email, password_hash, role, email_verified, created_at`

func scanUser(row scanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.EmailVerified, &u.CreatedAt)
	return u, err
}

// Create fails with a unique violation when the email is registered.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, u.Name, u.Email, u.PasswordHash, u.Role).Scan(&u.ID, &u.CreatedAt)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepository) SetPassword(ctx context.Context, id, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

// MarkEmailVerified returns the user as stored after the update.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.db.QueryRow(ctx, `
		UPDATE users SET email_verified = TRUE
		WHERE id = $1
		RETURNING `+userColumns, id))
}

func (r *UserRepository) SetRole(ctx context.Context, id, role string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return err
	}
	return requireOne(tag.RowsAffected())
}

// InsertActionToken stores a new one-time token and voids earlier unused
// tokens of the same kind for the user.
func (r *UserRepository) InsertActionToken(ctx context.Context, t model.ActionToken) error {
	if _, err := r.db.Exec(ctx, `
		UPDATE auth_action_tokens
		SET used_at = now()
		WHERE user_id = $1 AND kind = $2 AND used_at IS NULL
	`, t.UserID, string(t.Kind)); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO auth_action_tokens (token_hash, user_id, kind, expires_at)
		VALUES ($1, $2, $3, $4)
	`, t.TokenHash, t.UserID, string(t.Kind), t.ExpiresAt)
	return err
}

// ConsumeActionToken marks the token used and returns it. The caller checks
// ExpiresAt; an already used or unknown token yields pgx.ErrNoRows.
func (r *UserRepository) ConsumeActionToken(ctx context.Context, hash string, kind model.ActionKind, now time.Time) (model.ActionToken, error) {
	t := model.ActionToken{TokenHash: hash, Kind: kind}
	var usedAt time.Time
	err := r.db.QueryRow(ctx, `
		UPDATE auth_action_tokens
		SET used_at = $3
		WHERE token_hash = $1 AND kind = $2 AND used_at IS NULL
		RETURNING user_id, expires_at, used_at
	`, hash, string(kind), now).Scan(&t.UserID, &t.ExpiresAt, &usedAt)
	if err != nil {
		return model.ActionToken{}, err
	}
	t.UsedAt = &usedAt
	return t, nil
}

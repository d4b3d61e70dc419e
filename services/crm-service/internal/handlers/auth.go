package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/consultcrm/libs/auth"
	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/libs/events"
	"github.com/md-rashed-zaman/consultcrm/libs/httpx"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/apperr"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/model"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/outbox"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/storage"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

type AuthConfig struct {
	// AppURL is the frontend origin the e-mailed links point at.
	AppURL string
	// AdminEmails are promoted to the admin role once they verify their address.
	AdminEmails []string
	ResetTTL    time.Duration
	VerifyTTL   time.Duration
}

type AuthHandler struct {
	conn   db.DBTX
	users  *storage.UserRepository
	outbox *outbox.Repository
	issuer *auth.Issuer
	cfg    AuthConfig
	admins map[string]struct{}
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthHandler(conn db.DBTX, issuer *auth.Issuer, cfg AuthConfig, logger *slog.Logger) *AuthHandler {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = time.Hour
	}
	if cfg.VerifyTTL <= 0 {
		cfg.VerifyTTL = 72 * time.Hour
	}
	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		if email, ok := validation.Email(e); ok {
			admins[email] = struct{}{}
		}
	}
	return &AuthHandler{
		conn:   conn,
		users:  storage.NewUserRepository(conn),
		outbox: outbox.NewRepository(),
		issuer: issuer,
		cfg:    cfg,
		admins: admins,
		logger: logger,
		now:    time.Now,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string     `json:"token"`
	TokenType string     `json:"tokenType"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      model.User `json:"user"`
}

func authField(code, field string) *apperr.Error {
	e := apperr.Auth(code)
	e.Fields = apperr.FieldErrors{field: e.Message}
	return e
}

// Register creates a client account, signs it in and queues the
// verification e-mail.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	name, email, err := validation.Register(req.Name, req.Email, req.Password)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	u := model.User{Name: name, Email: email, PasswordHash: hash, Role: auth.RoleClient}

	ctx := r.Context()
	err = db.InTx(ctx, h.conn, func(tx pgx.Tx) error {
		if err := h.users.WithTx(tx).Create(ctx, &u); err != nil {
			if db.IsUniqueViolation(err) {
				return authField("auth/email-already-in-use", "email")
			}
			return err
		}
		return h.issueAction(ctx, tx, u, model.ActionVerifyEmail)
	})
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	h.writeSession(w, r, http.StatusCreated, u)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	email, err := validation.Login(req.Email, req.Password)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	// Unknown accounts and wrong passwords get the same answer and the same
	// bcrypt cost.
	u, err := h.users.GetByEmail(r.Context(), email)
	switch {
	case db.IsNotFound(err):
		_ = verifyPassword(string(absentUserHash), req.Password)
		fail(w, r, h.logger, authField("auth/invalid-credential", "password"))
		return
	case err != nil:
		fail(w, r, h.logger, err)
		return
	}
	if err := verifyPassword(u.PasswordHash, req.Password); err != nil {
		fail(w, r, h.logger, authField("auth/invalid-credential", "password"))
		return
	}
	h.writeSession(w, r, http.StatusOK, u)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, r *http.Request, status int, u model.User) {
	token, exp, err := h.issuer.Sign(u.ID, u.Email, u.Role, u.Name)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, status, sessionResponse{Token: token, TokenType: "Bearer", ExpiresAt: exp, User: u})
}

// Me must run behind auth.RequireAuth.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		fail(w, r, h.logger, apperr.Auth("auth/requires-recent-login"))
		return
	}
	u, err := h.users.GetByID(r.Context(), claims.UserID())
	if err != nil {
		if db.IsNotFound(err) {
			err = apperr.Auth("auth/user-not-found")
		}
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": u})
}

// RequestPasswordReset answers 202 whether or not the address is registered.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	email, ok := validation.Email(req.Email)
	if !ok {
		fail(w, r, h.logger, authField("auth/invalid-email", "email"))
		return
	}
	ctx := r.Context()
	u, err := h.users.GetByEmail(ctx, email)
	switch {
	case db.IsNotFound(err):
		h.logger.InfoContext(ctx, "password reset for unknown email")
	case err != nil:
		fail(w, r, h.logger, err)
		return
	default:
		if err := db.InTx(ctx, h.conn, func(tx pgx.Tx) error {
			return h.issueAction(ctx, tx, u, model.ActionPasswordReset)
		}); err != nil {
			fail(w, r, h.logger, err)
			return
		}
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]bool{"sent": true})
}

func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if err := validation.Password(req.Password); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	ctx := r.Context()
	err = db.InTx(ctx, h.conn, func(tx pgx.Tx) error {
		users := h.users.WithTx(tx)
		t, err := h.consume(ctx, users, req.Token, model.ActionPasswordReset)
		if err != nil {
			return err
		}
		return users.SetPassword(ctx, t.UserID, hash)
	})
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// RequestEmailVerification must run behind auth.RequireAuth.
func (h *AuthHandler) RequestEmailVerification(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		fail(w, r, h.logger, apperr.Auth("auth/requires-recent-login"))
		return
	}
	ctx := r.Context()
	u, err := h.users.GetByID(ctx, claims.UserID())
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if u.EmailVerified {
		httpx.WriteJSON(w, http.StatusOK, map[string]bool{"verified": true})
		return
	}
	if err := db.InTx(ctx, h.conn, func(tx pgx.Tx) error {
		return h.issueAction(ctx, tx, u, model.ActionVerifyEmail)
	}); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]bool{"sent": true})
}

func (h *AuthHandler) ConfirmEmailVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decode(r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	ctx := r.Context()
	var promoted bool
	err := db.InTx(ctx, h.conn, func(tx pgx.Tx) error {
		users := h.users.WithTx(tx)
		t, err := h.consume(ctx, users, req.Token, model.ActionVerifyEmail)
		if err != nil {
			return err
		}
		u, err := users.MarkEmailVerified(ctx, t.UserID)
		if err != nil {
			return err
		}
		if _, ok := h.admins[u.Email]; !ok || u.Role == auth.RoleAdmin {
			return nil
		}
		if err := users.SetRole(ctx, u.ID, auth.RoleAdmin); err != nil {
			return err
		}
		promoted = true
		h.logger.InfoContext(ctx, "user promoted to admin", "user_id", u.ID)
		return nil
	})
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	// A promoted user signs in again to get a token carrying the admin role.
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"verified": true, "promoted": promoted})
}

func (h *AuthHandler) consume(ctx context.Context, users *storage.UserRepository, raw string, kind model.ActionKind) (model.ActionToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.ActionToken{}, apperr.Auth("auth/invalid-action-code")
	}
	t, err := users.ConsumeActionToken(ctx, hashToken(raw), kind, h.now())
	if err != nil {
		if db.IsNotFound(err) {
			return model.ActionToken{}, apperr.Auth("auth/invalid-action-code")
		}
		return model.ActionToken{}, err
	}
	if !h.now().Before(t.ExpiresAt) {
		return model.ActionToken{}, apperr.Auth("auth/expired-action-code")
	}
	return t, nil
}

// issueAction stores a fresh one-time token and queues the e-mail carrying
// it through the outbox.
func (h *AuthHandler) issueAction(ctx context.Context, tx pgx.Tx, u model.User, kind model.ActionKind) error {
	raw, err := newActionToken()
	if err != nil {
		return err
	}
	ttl, path, eventType := h.cfg.VerifyTTL, "/verify-email", events.EmailVerificationRequested
	if kind == model.ActionPasswordReset {
		ttl, path, eventType = h.cfg.ResetTTL, "/reset-password", events.PasswordResetRequested
	}
	expires := h.now().Add(ttl).UTC()
	if err := h.users.WithTx(tx).InsertActionToken(ctx, model.ActionToken{
		TokenHash: hashToken(raw),
		UserID:    u.ID,
		Kind:      kind,
		ExpiresAt: expires,
	}); err != nil {
		return err
	}
	evt, err := outbox.NewEvent("user", u.ID, eventType, events.AuthActionPayload{
		UserID:    u.ID,
		Name:      u.Name,
		Email:     u.Email,
		ActionURL: h.cfg.AppURL + path + "?token=" + url.QueryEscape(raw),
		ExpiresAt: expires.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return h.outbox.Insert(ctx, tx, evt)
}

func newActionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func hashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// absentUserHash is compared against when the account does not exist.
var absentUserHash, _ = bcrypt.GenerateFromPassword([]byte("no-account"), bcrypt.DefaultCost)

func verifyPassword(hash string, raw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw))
}

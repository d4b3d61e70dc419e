package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/consultcrm/libs/httpx"
)

type ctxKey int

const ctxKeyClaims ctxKey = iota

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(*Claims)
	return c, ok && c != nil
}

func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, c)
}

// BearerToken extracts the token from "Authorization: Bearer <t>". The
// websocket handshake cannot set headers from browsers, so ?access_token= is
// accepted as a fallback.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

func (i *Issuer) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			writeAuthError(w, http.StatusUnauthorized, "auth/missing-token", "Debes iniciar sesión para continuar.")
			return
		}
		claims, err := i.Verify(token)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "auth/invalid-token", "Tu sesión ha expirado. Inicia sesión de nuevo.")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "auth/missing-token", "Debes iniciar sesión para continuar.")
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeAuthError(w, http.StatusForbidden, "auth/insufficient-role", "No tienes permisos para realizar esta acción.")
		})
	}
}

func writeAuthError(w http.ResponseWriter, code int, authCode, msg string) {
	httpx.WriteJSON(w, code, map[string]any{
		"error": map[string]any{
			"kind":    "auth",
			"code":    authCode,
			"message": msg,
		},
	})
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef-test"

func TestSignVerifyRoundTrip(t *testing.T) {
	iss, err := NewIssuer(testSecret, "crm", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	token, exp, err := iss.Sign("user-1", "ana@example.com", RoleAdmin, "Ana")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatalf("expiry should be in the future: %s", exp)
	}
	claims, err := iss.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID() != "user-1" || !claims.IsAdmin() || claims.Email != "ana@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejectsTamperedAndExpired(t *testing.T) {
	iss, _ := NewIssuer(testSecret, "crm", time.Hour)
	other, _ := NewIssuer("another-secret-value!!", "crm", time.Hour)

	token, _, _ := other.Sign("user-1", "a@example.com", RoleClient, "")
	if _, err := iss.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}

	iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, _ := iss.Sign("user-1", "a@example.com", RoleClient, "")
	iss.now = time.Now
	if _, err := iss.Verify(stale); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x", Issuer: "crm"}})
	raw, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := iss.Verify(raw); err != ErrInvalidToken {
		t.Fatalf("expected alg=none to be rejected, got %v", err)
	}
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer("short", "crm", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestRequireRole(t *testing.T) {
	iss, _ := NewIssuer(testSecret, "crm", time.Hour)
	h := iss.RequireAuth(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	clientToken, _, _ := iss.Sign("u-1", "c@example.com", RoleClient, "")
	adminToken, _, _ := iss.Sign("u-2", "a@example.com", RoleAdmin, "")

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"client", "Bearer " + clientToken, http.StatusForbidden},
		{"admin", "bearer " + adminToken, http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/clients", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.want, rec.Code)
		}
	}
}

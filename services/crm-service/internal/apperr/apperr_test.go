package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		kind      Kind
		status    int
		retryable bool
	}{
		{"not found", pgx.ErrNoRows, KindNotFound, http.StatusNotFound, false},
		{"exclusion", &pgconn.PgError{Code: "23P01"}, KindConflict, http.StatusConflict, false},
		{"unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), KindConflict, http.StatusConflict, false},
		{"check", &pgconn.PgError{Code: "23514"}, KindValidation, http.StatusUnprocessableEntity, false},
		{"other pg", &pgconn.PgError{Code: "57P01"}, KindStorage, http.StatusServiceUnavailable, true},
		{"deadline", context.DeadlineExceeded, KindNetwork, http.StatusServiceUnavailable, true},
		{"plain", errors.New("boom"), KindUnknown, http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			require.NotNil(t, got)
			assert.Equal(t, tc.kind, got.Kind)
			assert.Equal(t, tc.status, got.Status())
			assert.Equal(t, tc.retryable, got.Retryable)
			assert.NotEmpty(t, got.Message)
			assert.ErrorIs(t, got, tc.err)
		})
	}
	assert.Nil(t, Classify(nil))
}

func TestClassifyKeepsAppError(t *testing.T) {
	orig := SlotTaken("ocupado")
	wrapped := fmt.Errorf("book: %w", orig)
	assert.Same(t, orig, Classify(wrapped))
}

func TestAuthCodes(t *testing.T) {
	e := Auth("auth/wrong-password")
	assert.Equal(t, "La contraseña es incorrecta.", e.Message)
	assert.Equal(t, http.StatusUnauthorized, e.Status())
	assert.NotEmpty(t, e.Suggestions)

	assert.True(t, Auth("auth/too-many-requests").Retryable)
	assert.Equal(t, http.StatusTooManyRequests, Auth("auth/too-many-requests").Status())
	assert.Equal(t, http.StatusConflict, Auth("auth/email-already-in-use").Status())
	assert.Equal(t, http.StatusGone, Auth("auth/expired-action-code").Status())

	unknown := Auth("auth/something-new")
	assert.Equal(t, KindAuth, unknown.Kind)
	assert.Equal(t, http.StatusUnauthorized, unknown.Status())
	assert.NotEmpty(t, unknown.Message)
}

func TestFieldErrors(t *testing.T) {
	f := FieldErrors{}
	require.NoError(t, f.Err())
	f.Add("email", "primero")
	f.Add("email", "segundo")
	err := f.Err()
	require.Error(t, err)
	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, KindValidation, appErr.Kind)
	assert.Equal(t, "primero", appErr.Fields["email"])
}

func TestWriteHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil)
	Write(rec, req, nil, errors.New("password=secret"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")

	var body struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unknown", body.Error.Kind)
	assert.Equal(t, "Ha ocurrido un error inesperado.", body.Error.Message)
}

func TestWriteSlotTaken(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/consultations", nil)
	Write(rec, req, nil, SlotTaken("Otra reserva ocupa este horario."))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"startTime":"Otra reserva ocupa este horario."`)
	assert.Contains(t, rec.Body.String(), `"code":"booking/slot-unavailable"`)
}

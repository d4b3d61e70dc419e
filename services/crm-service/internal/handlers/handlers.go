// Package handlers exposes the CRM over HTTP: the public booking funnel,
// account management, the admin dashboard API and the payment webhook.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/consultcrm/libs/httpx"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/apperr"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/storage"
)

func decode(r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		if errors.Is(err, httpx.ErrEmptyBody) {
			return apperr.BadRequest("La petición no incluye datos.")
		}
		return apperr.BadRequest("Los datos enviados no tienen un formato válido.")
	}
	return nil
}

func fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	apperr.Write(w, r, logger, err)
}

func pathID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}

// queryInt reads an optional integer parameter; a malformed value is a field
// error keyed by the parameter name.
func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation(apperr.FieldErrors{key: "Debe ser un número entero."})
	}
	return n, nil
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return v
}

func page(r *http.Request) (storage.Page, error) {
	n, err := queryInt(r, "page")
	if err != nil {
		return storage.Page{}, err
	}
	size, err := queryInt(r, "page_size")
	if err != nil {
		return storage.Page{}, err
	}
	return storage.PageFromNumber(n, size), nil
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page,omitempty"`
}

func writeList[T any](w http.ResponseWriter, items []T, p storage.Page) {
	resp := listResponse[T]{Items: items}
	if p.Limit > 0 {
		resp.Page = p.Offset/p.Limit + 1
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Package apperr classifies failures into the buckets the funnel and the
// dashboard render: a Spanish message, whether retrying can help, and
// per-field form errors.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/consultcrm/libs/db"
)

type Kind string

const (
	KindNetwork    Kind = "network"
	KindAuth       Kind = "auth"
	KindStorage    Kind = "storage"
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindUnknown    Kind = "unknown"
)

type Error struct {
	Kind        Kind              `json:"kind"`
	Code        string            `json:"code,omitempty"`
	Message     string            `json:"message"`
	Fields      map[string]string `json:"fields,omitempty"`
	Retryable   bool              `json:"retryable"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Err         error             `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return authStatus(e.Code)
	case KindNetwork, KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FieldErrors maps a form field to its Spanish message.
type FieldErrors map[string]string

func (f FieldErrors) Add(field, msg string) {
	if _, exists := f[field]; !exists {
		f[field] = msg
	}
}

func (f FieldErrors) Empty() bool { return len(f) == 0 }

// Err returns nil when no field failed.
func (f FieldErrors) Err() error {
	if f.Empty() {
		return nil
	}
	return Validation(f)
}

func Validation(fields FieldErrors) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    "validation/invalid-fields",
		Message: "Revisa los campos marcados e inténtalo de nuevo.",
		Fields:  fields,
	}
}

func BadRequest(msg string) *Error {
	return &Error{Kind: KindValidation, Code: "validation/bad-request", Message: msg}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: "not-found", Message: fmt.Sprintf("No se encontró %s.", what)}
}

// SlotTaken is returned when a booking loses the race for its slot or the
// slot stopped being available.
func SlotTaken(reason string) *Error {
	return &Error{
		Kind:        KindConflict,
		Code:        "booking/slot-unavailable",
		Message:     "El horario seleccionado ya no está disponible.",
		Fields:      FieldErrors{"startTime": reason},
		Suggestions: []string{"Elige otro horario del calendario."},
	}
}

func Conflict(code, msg string, fields FieldErrors) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg, Fields: fields}
}

func InvalidTransition(from, to string) *Error {
	return &Error{
		Kind:    KindConflict,
		Code:    "appointment/invalid-transition",
		Message: fmt.Sprintf("No se puede cambiar una cita de %q a %q.", from, to),
	}
}

func Storage(err error) *Error {
	return &Error{
		Kind:        KindStorage,
		Code:        "storage/unavailable",
		Message:     "No pudimos acceder a los datos en este momento.",
		Retryable:   true,
		Suggestions: []string{"Espera unos segundos y vuelve a intentarlo."},
		Err:         err,
	}
}

func Network(err error) *Error {
	return &Error{
		Kind:      KindNetwork,
		Code:      "network/unavailable",
		Message:   "Error de conexión. Comprueba tu conexión a internet.",
		Retryable: true,
		Suggestions: []string{
			"Comprueba tu conexión a internet.",
			"Vuelve a intentarlo en unos segundos.",
		},
		Err: err,
	}
}

func Internal(err error) *Error {
	return &Error{
		Kind:        KindUnknown,
		Code:        "internal",
		Message:     "Ha ocurrido un error inesperado.",
		Suggestions: []string{"Recarga la página.", "Si el problema persiste, contacta con soporte."},
		Err:         err,
	}
}

// Classify maps any error onto an *Error. Errors that already are one pass
// through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Network(err)
	case db.IsNotFound(err):
		return &Error{Kind: KindNotFound, Code: "not-found", Message: "No se encontró el registro solicitado.", Err: err}
	case db.IsExclusionViolation(err):
		e := SlotTaken("Otra reserva ocupa este horario.")
		e.Err = err
		return e
	case db.IsUniqueViolation(err):
		return &Error{Kind: KindConflict, Code: "storage/duplicate", Message: "Ya existe un registro con esos datos.", Err: err}
	case db.IsCheckViolation(err):
		return &Error{Kind: KindValidation, Code: "storage/check-violation", Message: "Los datos no cumplen las reglas del registro.", Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return Storage(err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Storage(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return Network(err)
	}
	return Internal(err)
}

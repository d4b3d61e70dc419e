package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/apperr"
)

// Register returns the normalized name and email, or an auth error carrying
// the provider-style code the funnel renders.
func Register(name, email, password string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", apperr.Validation(apperr.FieldErrors{"name": msgRequired})
	}
	normalized, err := Login(email, password)
	if err != nil {
		return "", "", err
	}
	if err := Password(password); err != nil {
		return "", "", err
	}
	return name, normalized, nil
}

func Login(email, password string) (string, error) {
	normalized, ok := Email(email)
	if !ok {
		return "", withField(apperr.Auth("auth/invalid-email"), "email")
	}
	if password == "" {
		return "", apperr.Validation(apperr.FieldErrors{"password": msgRequired})
	}
	return normalized, nil
}

func Password(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return withField(apperr.Auth("auth/weak-password"), "password")
	}
	return nil
}

func withField(e *apperr.Error, field string) *apperr.Error {
	e.Fields = apperr.FieldErrors{field: e.Message}
	return e
}

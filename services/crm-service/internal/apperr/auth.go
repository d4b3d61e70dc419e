package apperr

import "net/http"

type authEntry struct {
	message     string
	status      int
	retryable   bool
	suggestions []string
}

var authCatalog = map[string]authEntry{
	"auth/user-not-found": {
		message:     "No existe una cuenta con este correo electrónico.",
		status:      http.StatusUnauthorized,
		suggestions: []string{"Comprueba el correo o crea una cuenta nueva."},
	},
	"auth/wrong-password": {
		message:     "La contraseña es incorrecta.",
		status:      http.StatusUnauthorized,
		suggestions: []string{"Vuelve a escribir la contraseña.", "Usa \"¿Olvidaste tu contraseña?\" para restablecerla."},
	},
	"auth/invalid-credential": {
		message:     "El correo o la contraseña no son correctos.",
		status:      http.StatusUnauthorized,
		suggestions: []string{"Vuelve a escribir la contraseña.", "Usa \"¿Olvidaste tu contraseña?\" para restablecerla."},
	},
	"auth/email-already-in-use": {
		message:     "Este correo electrónico ya está registrado.",
		status:      http.StatusConflict,
		suggestions: []string{"Inicia sesión con este correo.", "Restablece la contraseña si no la recuerdas."},
	},
	"auth/weak-password": {
		message: "La contraseña debe tener al menos 6 caracteres.",
		status:  http.StatusUnprocessableEntity,
	},
	"auth/invalid-email": {
		message: "El correo electrónico no es válido.",
		status:  http.StatusUnprocessableEntity,
	},
	"auth/user-disabled": {
		message:     "Esta cuenta ha sido deshabilitada.",
		status:      http.StatusForbidden,
		suggestions: []string{"Contacta con soporte."},
	},
	"auth/too-many-requests": {
		message:     "Demasiados intentos fallidos. Inténtalo más tarde.",
		status:      http.StatusTooManyRequests,
		retryable:   true,
		suggestions: []string{"Espera unos minutos antes de volver a intentarlo."},
	},
	"auth/network-request-failed": {
		message:     "Error de conexión. Comprueba tu conexión a internet.",
		status:      http.StatusServiceUnavailable,
		retryable:   true,
		suggestions: []string{"Comprueba tu conexión a internet.", "Vuelve a intentarlo en unos segundos."},
	},
	"auth/expired-action-code": {
		message:     "El enlace ha caducado.",
		status:      http.StatusGone,
		suggestions: []string{"Solicita un nuevo enlace."},
	},
	"auth/invalid-action-code": {
		message:     "El enlace no es válido o ya se ha utilizado.",
		status:      http.StatusBadRequest,
		suggestions: []string{"Solicita un nuevo enlace."},
	},
	"auth/unauthorized-domain": {
		message:     "Este dominio no está autorizado para iniciar sesión.",
		status:      http.StatusForbidden,
		suggestions: []string{
			"Administrador: añade el dominio a CORS_ALLOWED_ORIGINS.",
			"Reinicia el servicio después de cambiar la configuración.",
		},
	},
	"auth/requires-recent-login": {
		message: "Por seguridad, vuelve a iniciar sesión.",
		status:  http.StatusUnauthorized,
	},
}

// Auth builds the error for a provider-style auth code such as
// "auth/wrong-password". Unknown codes fall back to a generic message.
func Auth(code string) *Error {
	entry, ok := authCatalog[code]
	if !ok {
		return &Error{
			Kind:        KindAuth,
			Code:        code,
			Message:     "Error de autenticación. Inténtalo de nuevo.",
			Suggestions: []string{"Si el problema persiste, contacta con soporte."},
		}
	}
	return &Error{
		Kind:        KindAuth,
		Code:        code,
		Message:     entry.message,
		Retryable:   entry.retryable,
		Suggestions: entry.suggestions,
	}
}

func authStatus(code string) int {
	if entry, ok := authCatalog[code]; ok {
		return entry.status
	}
	return http.StatusUnauthorized
}

package apperr

import (
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/consultcrm/libs/httpx"
)

type envelope struct {
	Error *Error `json:"error"`
}

// Write classifies err and renders it. Failures the caller cannot fix are
// logged with their cause; the cause never reaches the response.
func Write(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	appErr := Classify(err)
	status := appErr.Status()
	if logger != nil && status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"kind", appErr.Kind,
			"code", appErr.Code,
			"path", r.URL.Path,
			"err", err,
		)
	}
	httpx.WriteJSON(w, status, envelope{Error: appErr})
}

package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/consultcrm/libs/httpx"
	"github.com/md-rashed-zaman/consultcrm/services/crm-service/internal/payments"
)

const maxWebhookBody = 64 << 10

type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, done payments.Completion) error
}

// WebhookHandler receives Stripe events. Any non-2xx answer makes Stripe
// retry, so only storage failures return 5xx.
type WebhookHandler struct {
	webhook *payments.Webhook
	confirm PaymentConfirmer
	logger  *slog.Logger
}

func NewWebhookHandler(wh *payments.Webhook, confirm PaymentConfirmer, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{webhook: wh, confirm: confirm, logger: logger}
}

func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	done, err := h.webhook.Parse(body, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payments.ErrIgnoredEvent):
		httpx.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	case errors.Is(err, payments.ErrNotConfigured):
		httpx.WriteError(w, http.StatusServiceUnavailable, "payments not configured")
		return
	case errors.Is(err, payments.ErrInvalidSignature):
		h.logger.WarnContext(r.Context(), "stripe webhook rejected", "err", err)
		httpx.WriteError(w, http.StatusBadRequest, "invalid signature")
		return
	case err != nil:
		h.logger.WarnContext(r.Context(), "stripe webhook unusable", "err", err)
		httpx.WriteError(w, http.StatusBadRequest, "unusable event")
		return
	}
	if err := h.confirm.ConfirmPayment(r.Context(), done); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}

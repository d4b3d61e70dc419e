package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const MetadataConsultationID = "consultation_id"

var (
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	ErrIgnoredEvent     = errors.New("payments: event type not handled")
)

// Completion is a paid checkout session.
type Completion struct {
	EventID        string
	SessionID      string
	ConsultationID string
	AmountTotal    int64
	Currency       string
	OccurredAt     time.Time
}

type Webhook struct {
	secret    string
	tolerance time.Duration
}

func NewWebhook(secret string, tolerance time.Duration) *Webhook {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}
	return &Webhook{secret: strings.TrimSpace(secret), tolerance: tolerance}
}

func (w *Webhook) Configured() bool { return w != nil && w.secret != "" }

// Parse verifies the Stripe-Signature header and extracts the completed
// checkout session. Other event types return ErrIgnoredEvent.
func (w *Webhook) Parse(body []byte, signature string) (Completion, error) {
	if !w.Configured() {
		return Completion{}, ErrNotConfigured
	}
	evt, err := webhook.ConstructEventWithOptions(body, signature, w.secret, webhook.ConstructEventOptions{
		Tolerance:                w.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if evt.Type != "checkout.session.completed" {
		return Completion{}, ErrIgnoredEvent
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
		return Completion{}, fmt.Errorf("payments: checkout session payload: %w", err)
	}
	if session.PaymentStatus != "" && session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return Completion{}, ErrIgnoredEvent
	}
	consultationID := strings.TrimSpace(session.Metadata[MetadataConsultationID])
	if consultationID == "" {
		consultationID = strings.TrimSpace(session.ClientReferenceID)
	}
	if consultationID == "" {
		return Completion{}, errors.New("payments: checkout session carries no consultation id")
	}
	return Completion{
		EventID:        evt.ID,
		SessionID:      session.ID,
		ConsultationID: consultationID,
		AmountTotal:    session.AmountTotal,
		Currency:       string(session.Currency),
		OccurredAt:     time.Unix(evt.Created, 0).UTC(),
	}, nil
}

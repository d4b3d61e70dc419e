// Package payments creates Stripe checkout sessions for paid consultation
// plans and verifies the webhook that confirms them.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
)

// ErrNotConfigured is returned when no Stripe key is set.
var ErrNotConfigured = errors.New("payments: stripe is not configured")

type CheckoutRequest struct {
	ConsultationID string
	PlanName       string
	AmountCents    int64
	Currency       string
	CustomerEmail  string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Checkout is what the booking flow needs from a payment provider.
type Checkout interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
}

type StripeCheckout struct {
	successURL string
	cancelURL  string
	create     func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripeCheckout(cfg StripeConfig) (*StripeCheckout, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.SuccessURL == "" || cfg.CancelURL == "" {
		return nil, errors.New("payments: checkout success and cancel URLs are required")
	}
	stripe.Key = strings.TrimSpace(cfg.SecretKey)
	return &StripeCheckout{
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		create:     checkoutsession.New,
	}, nil
}

func (s *StripeCheckout) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if req.AmountCents <= 0 {
		return CheckoutSession{}, fmt.Errorf("payments: consultation %s has no amount to charge", req.ConsultationID)
	}
	sess, err := s.create(s.params(ctx, req))
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe checkout session: %w", err)
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (s *StripeCheckout) params(ctx context.Context, req CheckoutRequest) *stripe.CheckoutSessionParams {
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "eur"
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withSession(s.successURL)),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(req.ConsultationID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.PlanName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			MetadataConsultationID: req.ConsultationID,
		},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String("checkout:" + req.ConsultationID)
	return params
}

func withSession(u string) string {
	if strings.Contains(u, "{CHECKOUT_SESSION_ID}") {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "session_id={CHECKOUT_SESSION_ID}"
}

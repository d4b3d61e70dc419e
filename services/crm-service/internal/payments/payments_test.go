package payments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

const testSecret = "whsec_test123"

func signedEvent(t *testing.T, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"created":     time.Now().Unix(),
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestWebhookParsesCompletedCheckout(t *testing.T) {
	body, sig := signedEvent(t, "checkout.session.completed", map[string]any{
		"id":             "cs_123",
		"object":         "checkout.session",
		"amount_total":   4500,
		"currency":       "eur",
		"payment_status": "paid",
		"metadata":       map[string]string{MetadataConsultationID: "cons-1"},
	})

	got, err := NewWebhook(testSecret, 0).Parse(body, sig)
	require.NoError(t, err)
	assert.Equal(t, "cs_123", got.SessionID)
	assert.Equal(t, "cons-1", got.ConsultationID)
	assert.Equal(t, int64(4500), got.AmountTotal)
	assert.Equal(t, "eur", got.Currency)
	assert.Equal(t, "evt_1", got.EventID)
}

func TestWebhookFallsBackToClientReference(t *testing.T) {
	body, sig := signedEvent(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_9",
		"object":              "checkout.session",
		"client_reference_id": "cons-9",
	})
	got, err := NewWebhook(testSecret, 0).Parse(body, sig)
	require.NoError(t, err)
	assert.Equal(t, "cons-9", got.ConsultationID)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	body, _ := signedEvent(t, "checkout.session.completed", map[string]any{"id": "cs_1"})
	_, err := NewWebhook(testSecret, 0).Parse(body, "t=1,v1=deadbeef")
	assert.True(t, errors.Is(err, ErrInvalidSignature), "got %v", err)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	body, sig := signedEvent(t, "checkout.session.expired", map[string]any{"id": "cs_1"})
	_, err := NewWebhook(testSecret, 0).Parse(body, sig)
	assert.ErrorIs(t, err, ErrIgnoredEvent)

	body, sig = signedEvent(t, "checkout.session.completed", map[string]any{
		"id": "cs_2", "payment_status": "unpaid", "metadata": map[string]string{MetadataConsultationID: "c"},
	})
	_, err = NewWebhook(testSecret, 0).Parse(body, sig)
	assert.ErrorIs(t, err, ErrIgnoredEvent)
}

func TestWebhookNotConfigured(t *testing.T) {
	_, err := NewWebhook("", 0).Parse([]byte("{}"), "sig")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCheckoutParams(t *testing.T) {
	var captured *stripe.CheckoutSessionParams
	c := &StripeCheckout{
		successURL: "https://crm.example.com/gracias",
		cancelURL:  "https://crm.example.com/reservar",
		create: func(p *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			captured = p
			return &stripe.CheckoutSession{ID: "cs_new", URL: "https://checkout.stripe.com/c/cs_new"}, nil
		},
	}

	sess, err := c.CreateCheckout(context.Background(), CheckoutRequest{
		ConsultationID: "cons-1", PlanName: "Consulta 60 min", AmountCents: 8000, CustomerEmail: "ana@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, CheckoutSession{ID: "cs_new", URL: "https://checkout.stripe.com/c/cs_new"}, sess)

	require.NotNil(t, captured)
	assert.Equal(t, "payment", *captured.Mode)
	assert.Equal(t, "https://crm.example.com/gracias?session_id={CHECKOUT_SESSION_ID}", *captured.SuccessURL)
	assert.Equal(t, "cons-1", *captured.ClientReferenceID)
	assert.Equal(t, "cons-1", captured.Metadata[MetadataConsultationID])
	assert.Equal(t, "checkout:cons-1", *captured.IdempotencyKey)
	require.Len(t, captured.LineItems, 1)
	assert.Equal(t, int64(8000), *captured.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "eur", *captured.LineItems[0].PriceData.Currency)
}

func TestCheckoutRejectsFreeAmount(t *testing.T) {
	c := &StripeCheckout{create: func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		t.Fatal("stripe must not be called")
		return nil, nil
	}}
	_, err := c.CreateCheckout(context.Background(), CheckoutRequest{ConsultationID: "c"})
	assert.Error(t, err)
}

func TestNewStripeCheckoutRequiresKey(t *testing.T) {
	_, err := NewStripeCheckout(StripeConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

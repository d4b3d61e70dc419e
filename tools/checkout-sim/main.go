// Command checkout-sim posts a signed checkout.session.completed event to the
// CRM webhook so a pending consultation can be marked paid without Stripe.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/consultcrm/libs/config"
	"github.com/stripe/stripe-go/v79/webhook"
)

func main() {
	var (
		baseURL      = flag.String("base-url", config.String("BASE_URL", "http://localhost:8080"), "crm-service base url")
		consultation = flag.String("consultation-id", config.String("CONSULTATION_ID", ""), "consultation to mark paid")
		amount       = flag.Int64("amount", 4500, "amount_total in cents")
		currency     = flag.String("currency", config.String("PAYMENT_CURRENCY", "eur"), "session currency")
		secret       = flag.String("secret", config.String("STRIPE_WEBHOOK_SECRET", ""), "webhook signing secret (whsec_...)")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("STRIPE_WEBHOOK_SECRET is required")
	}
	if strings.TrimSpace(*consultation) == "" {
		fatal("CONSULTATION_ID is required")
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(map[string]any{
		"id":          fmt.Sprintf("evt_sim_%d", now.UnixNano()),
		"object":      "event",
		"created":     now.Unix(),
		"type":        "checkout.session.completed",
		"api_version": "2024-06-20",
		"data": map[string]any{
			"object": map[string]any{
				"id":                  fmt.Sprintf("cs_sim_%d", now.Unix()),
				"object":              "checkout.session",
				"payment_status":      "paid",
				"amount_total":        *amount,
				"currency":            *currency,
				"client_reference_id": *consultation,
				"metadata":            map[string]string{"consultation_id": *consultation},
			},
		},
	})
	if err != nil {
		fatal(err.Error())
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    *secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	url := strings.TrimRight(*baseURL, "/") + "/api/v1/payments/stripe/webhook"
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	fmt.Printf("status=%d %s\n", resp.StatusCode, strings.TrimSpace(string(body)))
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}

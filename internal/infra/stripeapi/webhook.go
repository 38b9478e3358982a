package stripeapi

import (
	"fmt"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

// WebhookVerifier checks the Stripe-Signature header against the endpoint secret.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

func (v *WebhookVerifier) Verify(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe: verify webhook: %w", err)
	}
	return event, nil
}

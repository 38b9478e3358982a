package stripewebhooks

import (
	"context"

	"saas-starter/internal/infra/stripeapi"

	"github.com/stripe/stripe-go/v75"
)

func (h *Handler) handleInvoicePaymentSucceeded(ctx context.Context, event stripe.Event, inv *stripe.Invoice) (string, error) {
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		return outcomeIgnored, nil
	}

	sub, err := h.subs.GetSubscription(ctx, inv.Subscription.ID)
	if err != nil {
		return "", err
	}

	customerID := ""
	if inv.Customer != nil {
		customerID = inv.Customer.ID
	}
	return h.reconcile(ctx, event, stripeapi.SnapshotFromSubscription(sub, customerID))
}

package stripewebhooks

import (
	"context"

	"saas-starter/internal/infra/stripeapi"

	"github.com/stripe/stripe-go/v75"
)

// Only subscription-mode sessions matter. The subscription is re-fetched so
// the snapshot carries items and periods, and the session's reference id
// lets a first-time customer be linked to the user who started checkout.
func (h *Handler) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event, session *stripe.CheckoutSession) (string, error) {
	if session.Mode != stripe.CheckoutSessionModeSubscription || session.Subscription == nil || session.Subscription.ID == "" {
		return outcomeIgnored, nil
	}

	sub, err := h.subs.GetSubscription(ctx, session.Subscription.ID)
	if err != nil {
		return "", err
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	snap := stripeapi.SnapshotFromSubscription(sub, customerID)
	snap.ReferenceID = stripeapi.ReferenceIDFromSession(session)
	return h.reconcile(ctx, event, snap)
}

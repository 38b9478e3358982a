package stripewebhooks

import (
	"context"

	"saas-starter/internal/infra/stripeapi"

	"github.com/stripe/stripe-go/v75"
)

// Covers created, updated and deleted: the payload already is the
// subscription, and a deletion is just status=canceled.
func (h *Handler) handleSubscriptionChanged(ctx context.Context, event stripe.Event, sub *stripe.Subscription) (string, error) {
	if sub.ID == "" || sub.Customer == nil || sub.Customer.ID == "" {
		return "", errBadPayload
	}
	return h.reconcile(ctx, event, stripeapi.SnapshotFromSubscription(sub, ""))
}

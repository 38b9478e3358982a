package stripeapi

import (
	"time"

	"saas-starter/internal/billing/reconciler"

	"github.com/stripe/stripe-go/v75"
)

// SnapshotFromSubscription flattens a Stripe subscription into the
// reconciler's input. customerID overrides the subscription's own customer
// when the caller already knows it (checkout sessions, invoices).
func SnapshotFromSubscription(sub *stripe.Subscription, customerID string) reconciler.Snapshot {
	if customerID == "" && sub.Customer != nil {
		customerID = sub.Customer.ID
	}

	snap := reconciler.Snapshot{
		SubscriptionID:     sub.ID,
		CustomerID:         customerID,
		Status:             string(sub.Status),
		PriceID:            firstPriceID(sub),
		CurrentPeriodStart: unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.CanceledAt > 0 {
		t := unixTime(sub.CanceledAt)
		snap.CanceledAt = &t
	}
	return snap
}

// ReferenceIDFromSession prefers client_reference_id and falls back to the
// session's metadata user id.
func ReferenceIDFromSession(s *stripe.CheckoutSession) string {
	if s == nil {
		return ""
	}
	if s.ClientReferenceID != "" {
		return s.ClientReferenceID
	}
	return s.Metadata[reconciler.MetadataUserIDKey]
}

func firstPriceID(sub *stripe.Subscription) string {
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return ""
	}
	return sub.Items.Data[0].Price.ID
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

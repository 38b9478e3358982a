package subscriptions

import (
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("subscription not found")
	ErrDuplicate = errors.New("subscription unique constraint violated")
)

// Subscription is the local view of a user's billing relationship with Stripe.
// One row per user; cancellation is a status, rows are never deleted.
type Subscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UserID               string     `gorm:"column:user_id;not null;uniqueIndex:idx_subscriptions_user_id" json:"user_id"`
	StripeCustomerID     *string    `gorm:"column:stripe_customer_id;uniqueIndex:idx_subscriptions_stripe_customer_id" json:"stripe_customer_id"`
	StripeSubscriptionID *string    `gorm:"column:stripe_subscription_id;uniqueIndex:idx_subscriptions_stripe_subscription_id" json:"stripe_subscription_id"`
	Status               Status     `gorm:"column:status;type:varchar(32);not null;default:'incomplete'" json:"status"`
	PriceID              string     `gorm:"column:price_id" json:"price_id"`
	CurrentPeriodStart   *time.Time `gorm:"column:current_period_start" json:"current_period_start"`
	CurrentPeriodEnd     *time.Time `gorm:"column:current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd    bool       `gorm:"column:cancel_at_period_end;not null;default:false" json:"cancel_at_period_end"`
	CanceledAt           *time.Time `gorm:"column:canceled_at" json:"canceled_at"`

	// Creation time of the last provider event applied to this row.
	LastEventAt *time.Time `gorm:"column:last_event_at" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAccess reports whether the subscription currently unlocks paid features.
func (s *Subscription) HasAccess() bool {
	if s == nil {
		return false
	}
	return s.Status == StatusActive || s.Status == StatusTrialing
}

// IsStaleFor reports whether an event created at eventAt is older than the
// last event already applied to s.
func (s *Subscription) IsStaleFor(eventAt time.Time) bool {
	if s == nil || s.LastEventAt == nil || eventAt.IsZero() {
		return false
	}
	return eventAt.Before(*s.LastEventAt)
}

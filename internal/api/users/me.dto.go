package users

import "time"

type MeResponse struct {
	User    UserDTO    `json:"user"`
	Billing BillingDTO `json:"billing"`
	// Access is true while the subscription is active or trialing.
	Access bool `json:"access"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	AuthProvider string `json:"auth_provider"`
	IsVerified   bool   `json:"is_verified"`
}

/* ---------- BILLING ---------- */

type BillingDTO struct {
	Plan         *PlanDTO         `json:"plan"`
	Subscription *SubscriptionDTO `json:"subscription"`
}

type PlanDTO struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Interval      string `json:"interval"`
	UnitAmount    int64  `json:"unit_amount"`
	Currency      string `json:"currency"`
	StripePriceID string `json:"stripe_price_id"`
}

type SubscriptionDTO struct {
	Status               string     `json:"status"`
	PriceID              string     `json:"price_id"`
	CurrentPeriodStart   *time.Time `json:"current_period_start"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd    bool       `json:"cancel_at_period_end"`
	CanceledAt           *time.Time `json:"canceled_at"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id"`
}

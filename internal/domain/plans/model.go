package plans

import "time"

// Plan is a local copy of an active recurring Stripe price, kept so checkout
// can allow-list price ids without a Stripe round trip.
type Plan struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Name            string `json:"name"`
	StripePriceID   string `gorm:"column:stripe_price_id;not null;uniqueIndex:idx_plans_stripe_price_id" json:"stripe_price_id"`
	StripeProductID string `gorm:"column:stripe_product_id;index" json:"stripe_product_id"`
	UnitAmount      int64  `json:"unit_amount"` // minor units
	Currency        string `json:"currency"`
	Interval        string `json:"interval"` // month/year

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

package billing

import (
	"context"

	"saas-starter/internal/domain/plans"
	"saas-starter/internal/domain/subscriptions"
	"saas-starter/internal/domain/users"
	"saas-starter/internal/infra/stripeapi"

	"github.com/rs/zerolog"
)

// Payments is the part of the Stripe client the billing endpoints use.
type Payments interface {
	CreateCustomer(ctx context.Context, userID, email, appEnv string) (string, error)
	CreateCheckoutSession(ctx context.Context, req stripeapi.CheckoutRequest) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*users.User, error)
}

type SubscriptionStore interface {
	FindByUserID(ctx context.Context, userID string) (*subscriptions.Subscription, error)
	EnsureCustomer(ctx context.Context, userID, customerID, priceID string) (*subscriptions.Subscription, error)
}

type PlanLookup interface {
	GetByPriceID(ctx context.Context, priceID string) (*plans.Plan, error)
}

type Options struct {
	AppURL string
	AppEnv string
}

type Handler struct {
	payments Payments
	users    UserLookup
	subs     SubscriptionStore
	plans    PlanLookup
	opts     Options
	logger   zerolog.Logger
}

func NewHandler(p Payments, us UserLookup, subs SubscriptionStore, pl PlanLookup, opts Options, logger zerolog.Logger) *Handler {
	return &Handler{
		payments: p,
		users:    us,
		subs:     subs,
		plans:    pl,
		opts:     opts,
		logger:   logger.With().Str("component", "billing").Logger(),
	}
}

package stripeapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"saas-starter/internal/billing/reconciler"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

// Client wraps a per-instance Stripe API client so nothing relies on the
// package-level stripe.Key.
type Client struct {
	api *client.API
}

func New(secretKey string) *Client {
	return &Client{api: client.New(secretKey, nil)}
}

// NewWithBackends is used by tests to point the client at a fake server.
func NewWithBackends(secretKey string, backends *stripe.Backends) *Client {
	return &Client{api: client.New(secretKey, backends)}
}

// GetSubscription fetches a subscription with its price items.
func (c *Client) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: get subscription %s: %w", id, err)
	}
	return sub, nil
}

// GetCustomer returns nil, nil when Stripe has no such customer.
func (c *Client) GetCustomer(ctx context.Context, id string) (*reconciler.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cus, err := c.api.Customers.Get(id, params)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stripe: get customer %s: %w", id, err)
	}
	return &reconciler.Customer{
		ID:       cus.ID,
		Email:    cus.Email,
		Metadata: cus.Metadata,
		Deleted:  cus.Deleted,
	}, nil
}

// CreateCustomer registers a customer carrying our user id in its metadata.
func (c *Client) CreateCustomer(ctx context.Context, userID, email, appEnv string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			reconciler.MetadataUserIDKey: userID,
			"app_env":                    appEnv,
		},
	}
	params.Context = ctx
	cus, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create customer: %w", err)
	}
	return cus.ID, nil
}

type CheckoutRequest struct {
	CustomerID string
	PriceID    string
	UserID     string
	SuccessURL string
	CancelURL  string
}

// CreateCheckoutSession starts a subscription-mode checkout. The user id is
// sent both as client_reference_id and as metadata so webhooks can link the
// customer back to the user.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(req.CustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(req.PriceID), Quantity: stripe.Int64(1)},
		},
		ClientReferenceID: stripe.String(req.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{reconciler.MetadataUserIDKey: req.UserID},
		},
	}
	params.AddMetadata(reconciler.MetadataUserIDKey, req.UserID)
	params.Context = ctx

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return s.URL, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	s, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe: create portal session: %w", err)
	}
	return s.URL, nil
}

// ListRecurringPrices returns active recurring prices with their product expanded.
func (c *Client) ListRecurringPrices(ctx context.Context) ([]*stripe.Price, error) {
	params := &stripe.PriceListParams{}
	params.Active = stripe.Bool(true)
	params.Type = stripe.String("recurring")
	params.AddExpand("data.product")
	params.Context = ctx

	var out []*stripe.Price
	it := c.api.Prices.List(params)
	for it.Next() {
		out = append(out, it.Price())
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("stripe: list prices: %w", err)
	}
	return out, nil
}

func isNotFound(err error) bool {
	var se *stripe.Error
	return errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound
}

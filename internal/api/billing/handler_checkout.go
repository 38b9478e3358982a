package billing

import (
	"errors"
	"net/http"

	"saas-starter/internal/app/http/middleware"
	"saas-starter/internal/domain/subscriptions"
	"saas-starter/internal/infra/stripeapi"

	"github.com/gin-gonic/gin"
)

// POST /billing/checkout
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var body struct {
		PriceID string `json:"price_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.PriceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid price_id"})
		return
	}

	userID := c.GetString(middleware.CtxUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	ctx := c.Request.Context()

	// allow-list price id
	plan, err := h.plans.GetByPriceID(ctx, body.PriceID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan/price_id"})
		return
	}

	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	if !user.IsVerified {
		c.JSON(http.StatusForbidden, gin.H{"error": "Please verify your email first"})
		return
	}

	existing, err := h.subs.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, subscriptions.ErrNotFound) {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("load subscription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}
	if existing.HasAccess() && existing.StripeSubscriptionID != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Already subscribed, manage the plan from the billing portal"})
		return
	}

	// ensure stripe customer
	var customerID string
	if existing != nil && existing.StripeCustomerID != nil {
		customerID = *existing.StripeCustomerID
	} else {
		customerID, err = h.payments.CreateCustomer(ctx, user.ID, user.Email, h.opts.AppEnv)
		if err != nil {
			h.logger.Error().Err(err).Str("user_id", userID).Msg("create stripe customer failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create Stripe customer"})
			return
		}
	}

	if _, err := h.subs.EnsureCustomer(ctx, user.ID, customerID, plan.StripePriceID); err != nil {
		if errors.Is(err, subscriptions.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Stripe customer already linked to another account"})
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("store stripe customer failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store Stripe customer"})
		return
	}

	url, err := h.payments.CreateCheckoutSession(ctx, stripeapi.CheckoutRequest{
		CustomerID: customerID,
		PriceID:    plan.StripePriceID,
		UserID:     user.ID,
		SuccessURL: h.opts.AppURL + "/account?checkout=success",
		CancelURL:  h.opts.AppURL + "/account?canceled=1",
	})
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("create checkout session failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

package billing

import (
	"errors"
	"net/http"

	"saas-starter/internal/app/http/middleware"
	"saas-starter/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
)

// POST /billing/portal
func (h *Handler) CreateBillingPortal(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	ctx := c.Request.Context()
	sub, err := h.subs.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, subscriptions.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}
	if sub == nil || sub.StripeCustomerID == nil || *sub.StripeCustomerID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No Stripe customer yet (subscribe first)"})
		return
	}

	url, err := h.payments.CreatePortalSession(ctx, *sub.StripeCustomerID, h.opts.AppURL+"/account")
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("create portal session failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not create billing portal session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

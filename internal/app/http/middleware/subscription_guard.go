package middleware

import (
	"context"
	"errors"
	"net/http"

	"saas-starter/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
)

type SubscriptionLookup interface {
	FindByUserID(ctx context.Context, userID string) (*subscriptions.Subscription, error)
}

// RequireActiveSubscription lets through users whose subscription is active
// or trialing. Must run after AuthMiddleware.
func RequireActiveSubscription(subs SubscriptionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(CtxUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
			return
		}

		sub, err := subs.FindByUserID(c.Request.Context(), userID)
		if errors.Is(err, subscriptions.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Subscription not found"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
			return
		}

		if !sub.HasAccess() {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":  "Your subscription is not active",
				"status": sub.Status,
			})
			return
		}

		c.Next()
	}
}

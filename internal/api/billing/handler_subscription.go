package billing

import (
	"errors"
	"net/http"

	"saas-starter/internal/app/http/middleware"
	"saas-starter/internal/domain/subscriptions"

	"github.com/gin-gonic/gin"
)

// GET /billing/subscription
func (h *Handler) GetSubscription(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	sub, err := h.subs.FindByUserID(c.Request.Context(), userID)
	if errors.Is(err, subscriptions.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No subscription"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription": sub,
		"access":       sub.HasAccess(),
	})
}

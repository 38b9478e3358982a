package users

import (
	"context"
	"errors"
	"net/http"
	"time"

	"saas-starter/internal/app/http/middleware"
	"saas-starter/internal/domain/plans"
	"saas-starter/internal/domain/subscriptions"
	"saas-starter/internal/domain/users"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*users.User, error)
	MarkVerified(ctx context.Context, id string) error
}

type SubscriptionLookup interface {
	FindByUserID(ctx context.Context, userID string) (*subscriptions.Subscription, error)
}

type PlanLookup interface {
	GetByPriceID(ctx context.Context, priceID string) (*plans.Plan, error)
}

type TokenStore interface {
	Find(ctx context.Context, token, typ string) (*users.VerificationToken, error)
	Delete(ctx context.Context, id uint) error
}

type Handler struct {
	users  UserStore
	subs   SubscriptionLookup
	plans  PlanLookup
	tokens TokenStore
	appURL string
	logger zerolog.Logger
	now    func() time.Time
}

func NewHandler(us UserStore, subs SubscriptionLookup, pl PlanLookup, ts TokenStore, appURL string, logger zerolog.Logger) *Handler {
	return &Handler{
		users:  us,
		subs:   subs,
		plans:  pl,
		tokens: ts,
		appURL: appURL,
		logger: logger.With().Str("component", "users").Logger(),
		now:    time.Now,
	}
}

// GET /me
func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetUserByID(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	sub, err := h.subs.FindByUserID(ctx, userID)
	if err != nil && !errors.Is(err, subscriptions.ErrNotFound) {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("load subscription failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}

	var plan *plans.Plan
	if sub != nil && sub.PriceID != "" {
		// an unknown price just leaves the plan empty
		if p, err := h.plans.GetByPriceID(ctx, sub.PriceID); err == nil {
			plan = p
		}
	}

	c.JSON(http.StatusOK, MeResponse{
		User: BuildUserDTO(user),
		Billing: BillingDTO{
			Plan:         BuildPlanDTO(plan),
			Subscription: BuildSubscriptionDTO(sub),
		},
		Access: sub.HasAccess(),
	})
}

// GET /auth/verify?token=
func (h *Handler) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing token"})
		return
	}

	ctx := c.Request.Context()
	t, err := h.tokens.Find(ctx, token, users.TokenEmailVerification)
	if err != nil || t.Expired(h.now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		return
	}

	if err := h.users.MarkVerified(ctx, t.UserID); err != nil {
		h.logger.Error().Err(err).Str("user_id", t.UserID).Msg("mark verified failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify user"})
		return
	}

	if err := h.tokens.Delete(ctx, t.ID); err != nil {
		h.logger.Warn().Err(err).Msg("failed to delete used verification token")
	}

	c.Redirect(http.StatusTemporaryRedirect, h.appURL+"/signin")
}

// GET /pro, mounted behind the active-subscription guard.
func (h *Handler) GetProStatus(c *gin.Context) {
	sub, err := h.subs.FindByUserID(c.Request.Context(), c.GetString(middleware.CtxUserID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":               sub.Status,
		"price_id":             sub.PriceID,
		"current_period_end":   sub.CurrentPeriodEnd,
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
	})
}

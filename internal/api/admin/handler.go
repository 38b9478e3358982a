package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"saas-starter/internal/domain/billing"
	"saas-starter/internal/domain/subscriptions"
	"saas-starter/internal/domain/users"

	"github.com/gin-gonic/gin"
)

type UserDirectory interface {
	ListUsers(ctx context.Context) ([]users.User, error)
	GetUserByID(ctx context.Context, id string) (*users.User, error)
}

type SubscriptionReader interface {
	FindByUserID(ctx context.Context, userID string) (*subscriptions.Subscription, error)
	ListByUserIDs(ctx context.Context, userIDs []string) (map[string]subscriptions.Subscription, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type EventLedger interface {
	Get(ctx context.Context, eventID string) (*billing.WebhookEvent, error)
	Recent(ctx context.Context, limit int, failedOnly bool) ([]billing.WebhookEvent, error)
}

type Handler struct {
	users  UserDirectory
	subs   SubscriptionReader
	events EventLedger
}

func NewHandler(us UserDirectory, subs SubscriptionReader, events EventLedger) *Handler {
	return &Handler{users: us, subs: subs, events: events}
}

type AdminUser struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	Email                string     `json:"email"`
	Role                 string     `json:"role"`
	AuthProvider         string     `json:"auth_provider"`
	IsVerified           bool       `json:"is_verified"`
	CreatedAt            time.Time  `json:"created_at"`
	SubscriptionStatus   *string    `json:"subscription_status,omitempty"`
	PriceID              *string    `json:"price_id,omitempty"`
	StripeCustomerID     *string    `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	HasAccess            bool       `json:"has_access"`
}

type AdminStats struct {
	TotalUsers            int              `json:"total_users"`
	SubscriptionsByStatus map[string]int64 `json:"subscriptions_by_status"`
	ActiveOrTrialing      int64            `json:"active_or_trialing"`
	FailedWebhookEvents   int              `json:"failed_webhook_events"`
}

func buildAdminUser(u users.User, sub *subscriptions.Subscription) AdminUser {
	out := AdminUser{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		AuthProvider: u.AuthProvider,
		IsVerified:   u.IsVerified,
		CreatedAt:    u.CreatedAt,
	}
	if sub == nil {
		return out
	}
	status := string(sub.Status)
	out.SubscriptionStatus = &status
	if sub.PriceID != "" {
		price := sub.PriceID
		out.PriceID = &price
	}
	out.StripeCustomerID = sub.StripeCustomerID
	out.StripeSubscriptionID = sub.StripeSubscriptionID
	out.CurrentPeriodEnd = sub.CurrentPeriodEnd
	out.HasAccess = sub.HasAccess()
	return out
}

// GET /admin/users
func (h *Handler) ListAllUsers(c *gin.Context) {
	ctx := c.Request.Context()
	all, err := h.users.ListUsers(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}

	ids := make([]string, 0, len(all))
	for _, u := range all {
		ids = append(ids, u.ID)
	}
	subs, err := h.subs.ListByUserIDs(ctx, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}

	adminUsers := make([]AdminUser, 0, len(all))
	for _, u := range all {
		var sub *subscriptions.Subscription
		if s, ok := subs[u.ID]; ok {
			sub = &s
		}
		adminUsers = append(adminUsers, buildAdminUser(u, sub))
	}

	c.JSON(http.StatusOK, adminUsers)
}

// GET /admin/users/:id
func (h *Handler) GetUserDetails(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := h.users.GetUserByID(ctx, c.Param("id"))
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	sub, err := h.subs.FindByUserID(ctx, u.ID)
	if err != nil && !errors.Is(err, subscriptions.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscription"})
		return
	}

	c.JSON(http.StatusOK, buildAdminUser(*u, sub))
}

// GET /admin/dashboard
func (h *Handler) AdminDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	all, err := h.users.ListUsers(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load users"})
		return
	}
	counts, err := h.subs.CountByStatus(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriptions"})
		return
	}
	failed, err := h.events.Recent(ctx, 200, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load webhook events"})
		return
	}

	c.JSON(http.StatusOK, AdminStats{
		TotalUsers:            len(all),
		SubscriptionsByStatus: counts,
		ActiveOrTrialing:      counts[string(subscriptions.StatusActive)] + counts[string(subscriptions.StatusTrialing)],
		FailedWebhookEvents:   len(failed),
	})
}

// GET /admin/webhook-events?failed=1&limit=50
func (h *Handler) ListWebhookEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	failedOnly := c.Query("failed") == "1" || c.Query("failed") == "true"

	events, err := h.events.Recent(c.Request.Context(), limit, failedOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load webhook events"})
		return
	}
	c.JSON(http.StatusOK, events)
}

// GET /admin/webhook-events/:id
func (h *Handler) GetWebhookEvent(c *gin.Context) {
	ev, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, billing.ErrEventNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load webhook event"})
		return
	}
	c.JSON(http.StatusOK, ev)
}

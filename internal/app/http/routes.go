package routes

import (
	"net/http"

	adminapi "saas-starter/internal/api/admin"
	authapi "saas-starter/internal/api/auth"
	"saas-starter/internal/api/billing"
	"saas-starter/internal/api/plans"
	stripewebhooks "saas-starter/internal/api/stripewebhook"
	"saas-starter/internal/api/users"
	"saas-starter/internal/app/http/middleware"
	userdomain "saas-starter/internal/domain/users"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	Webhook *stripewebhooks.Handler
	Auth    *authapi.Handler
	Google  *authapi.GoogleHandler // nil disables Google sign-in
	Users   *users.Handler
	Billing *billing.Handler
	Plans   *plans.Handler
	Admin   *adminapi.Handler

	Tokens        middleware.TokenParser
	Subscriptions middleware.SubscriptionLookup

	AuthRateLimitPerMinute int
	Metrics                http.Handler // nil hides /metrics
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// signed by Stripe; must see the raw body
	r.POST("/webhook", d.Webhook.StripeWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	r.GET("/plans", d.Plans.ListPlans)
	r.GET("/auth/verify", d.Users.VerifyEmail)

	public := r.Group("/auth")
	public.Use(middleware.RateLimit(d.AuthRateLimitPerMinute), middleware.SanitizeAndCleanInputMiddleware())
	public.POST("/register", d.Auth.Register)
	public.POST("/login", d.Auth.Login)
	public.POST("/resend-verification", d.Auth.ResendVerification)
	public.POST("/password-reset/request", d.Auth.RequestPasswordReset)
	public.POST("/password-reset", d.Auth.ResetPassword)

	if d.Google != nil {
		public.GET("/google", d.Google.GoogleStart)
		public.GET("/google/callback", d.Google.GoogleCallback)
	}

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(d.Tokens))
	auth.GET("/me", d.Users.GetCurrentUser)
	auth.POST("/auth/change-password", d.Auth.ChangePassword)
	auth.POST("/billing/checkout", d.Billing.CreateCheckoutSession)
	auth.POST("/billing/portal", d.Billing.CreateBillingPortal)
	auth.GET("/billing/subscription", d.Billing.GetSubscription)

	// Subscribed users
	subscribed := auth.Group("/")
	subscribed.Use(middleware.RequireActiveSubscription(d.Subscriptions))
	subscribed.GET("/pro", d.Users.GetProStatus)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(d.Tokens), middleware.RequireRole(userdomain.RoleAdmin))
	admin.GET("/dashboard", d.Admin.AdminDashboard)
	admin.GET("/users", d.Admin.ListAllUsers)
	admin.GET("/users/:id", d.Admin.GetUserDetails)
	admin.GET("/webhook-events", d.Admin.ListWebhookEvents)
	admin.GET("/webhook-events/:id", d.Admin.GetWebhookEvent)
	admin.POST("/plans/sync", d.Plans.SyncPlansFromStripe)
}

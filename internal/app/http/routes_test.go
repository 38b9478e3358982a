package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	adminapi "saas-starter/internal/api/admin"
	authapi "saas-starter/internal/api/auth"
	"saas-starter/internal/api/billing"
	"saas-starter/internal/api/plans"
	stripewebhooks "saas-starter/internal/api/stripewebhook"
	"saas-starter/internal/api/users"
	"saas-starter/internal/billing/reconciler"
	userdomain "saas-starter/internal/domain/users"
	"saas-starter/internal/infra/authtoken"
	"saas-starter/internal/infra/mailer"
	"saas-starter/internal/infra/store"
	"saas-starter/internal/infra/stripeapi"
	"saas-starter/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type env struct {
	r      *gin.Engine
	issuer *authtoken.Issuer
	users  *store.UserDirectory
}

func newEnv(t *testing.T, withMetrics bool) *env {
	t.Helper()
	db := testutil.NewDB(t)
	logger := zerolog.Nop()

	userDir := store.NewUserDirectory(db)
	subStore := store.NewSubscriptionStore(db)
	planStore := store.NewPlanStore(db)
	tokenStore := store.NewTokenStore(db)
	ledger := store.NewWebhookLedger(db)
	stripeClient := stripeapi.New("sk_test_unused")
	issuer := authtoken.NewIssuer("test-secret", time.Hour)
	rec := reconciler.New(subStore, logger, reconciler.DefaultResolvers(subStore, userDir, stripeClient)...)

	d := Deps{
		Webhook: stripewebhooks.NewHandler(stripeapi.NewWebhookVerifier("whsec_test"), stripeClient, rec, logger),
		Auth: authapi.NewHandler(userDir, tokenStore, mailer.NewLog(logger), issuer,
			authapi.Links{APIURL: "http://api.test", AppURL: "http://app.test"}, logger),
		Users:   users.NewHandler(userDir, subStore, planStore, tokenStore, "http://app.test", logger),
		Billing: billing.NewHandler(stripeClient, userDir, subStore, planStore, billing.Options{AppURL: "http://app.test", AppEnv: "test"}, logger),
		Plans:   plans.NewHandler(stripeClient, planStore, "", logger),
		Admin:   adminapi.NewHandler(userDir, subStore, ledger),

		Tokens:        issuer,
		Subscriptions: subStore,
	}
	if withMetrics {
		d.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		})
	}

	r := gin.New()
	RegisterRoutes(r, d)
	return &env{r: r, issuer: issuer, users: userDir}
}

func (e *env) tokenFor(t *testing.T, role string) string {
	t.Helper()
	u := &userdomain.User{Email: role + "@example.com", Role: role, IsVerified: true}
	require.NoError(t, e.users.CreateUser(context.Background(), u))
	tok, err := e.issuer.Issue(authtoken.Claims{UserID: u.ID, Email: u.Email, Role: u.Role})
	require.NoError(t, err)
	return tok
}

func (e *env) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func TestPublicRoutes(t *testing.T) {
	e := newEnv(t, false)

	w := e.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = e.do(http.MethodGet, "/plans", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = e.do(http.MethodPost, "/webhook", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "unsigned webhook is rejected")
}

func TestOptionalRoutes(t *testing.T) {
	e := newEnv(t, false)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/auth/google", "").Code)

	e = newEnv(t, true)
	w := e.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# metrics")
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	e := newEnv(t, false)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/me"},
		{http.MethodPost, "/auth/change-password"},
		{http.MethodPost, "/billing/checkout"},
		{http.MethodPost, "/billing/portal"},
		{http.MethodGet, "/billing/subscription"},
		{http.MethodGet, "/pro"},
		{http.MethodGet, "/admin/users"},
	} {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, e.do(tc.method, tc.path, "").Code)
		})
	}
}

func TestMeWithToken(t *testing.T) {
	e := newEnv(t, false)
	tok := e.tokenFor(t, userdomain.RoleUser)

	w := e.do(http.MethodGet, "/me", tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user@example.com")
}

func TestProRequiresSubscription(t *testing.T) {
	e := newEnv(t, false)
	tok := e.tokenFor(t, userdomain.RoleUser)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/pro", tok).Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	e := newEnv(t, false)
	userTok := e.tokenFor(t, userdomain.RoleUser)
	adminTok := e.tokenFor(t, userdomain.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/admin/users", userTok).Code)
	assert.Equal(t, http.StatusForbidden, e.do(http.MethodGet, "/admin/dashboard", userTok).Code)

	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/admin/users", adminTok).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/admin/dashboard", adminTok).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodGet, "/admin/webhook-events", adminTok).Code)
}

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"saas-starter/internal/app/http/middleware"
	"saas-starter/internal/domain/plans"
	"saas-starter/internal/domain/subscriptions"
	"saas-starter/internal/domain/users"
	"saas-starter/internal/infra/store"
	"saas-starter/internal/infra/stripeapi"
	"saas-starter/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayments struct {
	customers []string
	checkouts []stripeapi.CheckoutRequest
	portals   []string
	err       error
}

func (f *fakePayments) CreateCustomer(_ context.Context, userID, _, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.customers = append(f.customers, userID)
	return "cus_new", nil
}

func (f *fakePayments) CreateCheckoutSession(_ context.Context, req stripeapi.CheckoutRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.checkouts = append(f.checkouts, req)
	return "https://checkout.stripe.test/cs_1", nil
}

func (f *fakePayments) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.portals = append(f.portals, customerID)
	return "https://billing.stripe.test/p_1", nil
}

type billingFixture struct {
	pay    *fakePayments
	dir    *store.UserDirectory
	subs   *store.SubscriptionStore
	router *gin.Engine
	user   *users.User
}

func newBillingFixture(t *testing.T, verified bool) *billingFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	ctx := context.Background()

	f := &billingFixture{
		pay:  &fakePayments{},
		dir:  store.NewUserDirectory(db),
		subs: store.NewSubscriptionStore(db),
	}
	planStore := store.NewPlanStore(db)
	_, err := planStore.UpsertByPriceID(ctx, &plans.Plan{Name: "Pro", StripePriceID: "price_pro", UnitAmount: 1900, Currency: "eur", Interval: "month"})
	require.NoError(t, err)

	f.user = &users.User{Email: "a@b.co", IsVerified: verified}
	require.NoError(t, f.dir.CreateUser(ctx, f.user))

	h := NewHandler(f.pay, f.dir, f.subs, planStore, Options{AppURL: "http://app.test", AppEnv: "test"}, zerolog.Nop())
	r := gin.New()
	authed := r.Group("/billing", func(c *gin.Context) { c.Set(middleware.CtxUserID, f.user.ID) })
	authed.POST("/checkout", h.CreateCheckoutSession)
	authed.POST("/portal", h.CreateBillingPortal)
	authed.GET("/subscription", h.GetSubscription)
	f.router = r
	return f
}

func (f *billingFixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestCheckout_CreatesCustomerAndPlaceholder(t *testing.T) {
	f := newBillingFixture(t, true)

	w := f.do(http.MethodPost, "/billing/checkout", `{"price_id":"price_pro"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"url":"https://checkout.stripe.test/cs_1"}`, w.Body.String())

	require.Len(t, f.pay.checkouts, 1)
	req := f.pay.checkouts[0]
	assert.Equal(t, "cus_new", req.CustomerID)
	assert.Equal(t, f.user.ID, req.UserID)
	assert.Equal(t, "price_pro", req.PriceID)

	sub, err := f.subs.FindByUserID(context.Background(), f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_new", *sub.StripeCustomerID)
	assert.Equal(t, subscriptions.StatusIncomplete, sub.Status)
	assert.Nil(t, sub.StripeSubscriptionID)

	// a second attempt reuses the stored customer
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/billing/checkout", `{"price_id":"price_pro"}`).Code)
	assert.Len(t, f.pay.customers, 1)
}

func TestCheckout_Rejections(t *testing.T) {
	f := newBillingFixture(t, true)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/billing/checkout", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/billing/checkout", `{"price_id":"price_unknown"}`).Code)

	unverified := newBillingFixture(t, false)
	assert.Equal(t, http.StatusForbidden, unverified.do(http.MethodPost, "/billing/checkout", `{"price_id":"price_pro"}`).Code)
}

func TestCheckout_AlreadySubscribed(t *testing.T) {
	f := newBillingFixture(t, true)
	cus, sub := "cus_1", "sub_1"
	require.NoError(t, f.subs.UpsertBySubscriptionID(context.Background(), &subscriptions.Subscription{
		UserID: f.user.ID, StripeCustomerID: &cus, StripeSubscriptionID: &sub, Status: subscriptions.StatusActive,
	}))

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/billing/checkout", `{"price_id":"price_pro"}`).Code)
	assert.Empty(t, f.pay.checkouts)
}

func TestCheckout_StripeFailure(t *testing.T) {
	f := newBillingFixture(t, true)
	f.pay.err = errors.New("stripe down")
	assert.Equal(t, http.StatusBadGateway, f.do(http.MethodPost, "/billing/checkout", `{"price_id":"price_pro"}`).Code)
}

func TestPortal(t *testing.T) {
	f := newBillingFixture(t, true)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/billing/portal", "").Code)

	_, err := f.subs.EnsureCustomer(context.Background(), f.user.ID, "cus_9", "price_pro")
	require.NoError(t, err)

	w := f.do(http.MethodPost, "/billing/portal", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"cus_9"}, f.pay.portals)
}

func TestGetSubscription(t *testing.T) {
	f := newBillingFixture(t, true)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/billing/subscription", "").Code)

	cus, sub := "cus_1", "sub_1"
	require.NoError(t, f.subs.UpsertBySubscriptionID(context.Background(), &subscriptions.Subscription{
		UserID: f.user.ID, StripeCustomerID: &cus, StripeSubscriptionID: &sub, Status: subscriptions.StatusTrialing, PriceID: "price_pro",
	}))

	w := f.do(http.MethodGet, "/billing/subscription", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Subscription subscriptions.Subscription `json:"subscription"`
		Access       bool                       `json:"access"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.Access)
	assert.Equal(t, subscriptions.StatusTrialing, out.Subscription.Status)
}

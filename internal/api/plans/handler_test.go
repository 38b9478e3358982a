package plans

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"saas-starter/internal/domain/plans"
	"saas-starter/internal/infra/store"
	"saas-starter/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75"
)

type fakePrices struct {
	prices []*stripe.Price
	err    error
}

func (f fakePrices) ListRecurringPrices(context.Context) ([]*stripe.Price, error) {
	return f.prices, f.err
}

func price(id, product string, amount int64, meta map[string]string) *stripe.Price {
	return &stripe.Price{
		ID:         id,
		Active:     true,
		Currency:   stripe.CurrencyEUR,
		UnitAmount: amount,
		Recurring:  &stripe.PriceRecurring{Interval: stripe.PriceRecurringIntervalMonth},
		Product:    &stripe.Product{ID: product, Name: "Product " + product, Active: true},
		Metadata:   meta,
	}
}

func newRouter(t *testing.T, prices fakePrices, productID string) (*gin.Engine, *store.PlanStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	catalog := store.NewPlanStore(testutil.NewDB(t))
	h := NewHandler(prices, catalog, productID, zerolog.Nop())
	r := gin.New()
	r.GET("/plans", h.ListPlans)
	r.POST("/admin/plans/sync", h.SyncPlansFromStripe)
	return r, catalog
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestSyncPlans(t *testing.T) {
	hidden := price("price_hidden", "prod_a", 500, map[string]string{"visible": "false"})
	inactive := price("price_old", "prod_a", 700, nil)
	inactive.Active = false
	oneOff := price("price_once", "prod_a", 900, nil)
	oneOff.Recurring = nil

	prices := fakePrices{prices: []*stripe.Price{
		price("price_team", "prod_a", 4900, map[string]string{"plan": "Team"}),
		price("price_pro", "prod_a", 1900, nil),
		price("price_other", "prod_b", 100, nil),
		hidden, inactive, oneOff,
	}}
	r, _ := newRouter(t, prices, "prod_a")

	w := do(r, http.MethodPost, "/admin/plans/sync")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"synced":2,"created":2,"updated":0,"skipped":4}`, w.Body.String())

	w = do(r, http.MethodPost, "/admin/plans/sync")
	assert.JSONEq(t, `{"synced":2,"created":0,"updated":2,"skipped":4}`, w.Body.String())

	w = do(r, http.MethodGet, "/plans")
	require.Equal(t, http.StatusOK, w.Code)
	var list []plans.Plan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "price_pro", list[0].StripePriceID)
	assert.Equal(t, "Team", list[1].Name)
	assert.Equal(t, int64(4900), list[1].UnitAmount)
}

func TestSyncPlans_StripeError(t *testing.T) {
	r, _ := newRouter(t, fakePrices{err: errors.New("stripe down")}, "")
	assert.Equal(t, http.StatusBadGateway, do(r, http.MethodPost, "/admin/plans/sync").Code)
}

package plans

import (
	"context"
	"net/http"

	"saas-starter/internal/domain/plans"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v75"
)

type PriceLister interface {
	ListRecurringPrices(ctx context.Context) ([]*stripe.Price, error)
}

type Catalog interface {
	List(ctx context.Context) ([]plans.Plan, error)
	UpsertByPriceID(ctx context.Context, p *plans.Plan) (created bool, err error)
}

type Handler struct {
	prices    PriceLister
	catalog   Catalog
	productID string // optional filter for sync
	logger    zerolog.Logger
}

func NewHandler(prices PriceLister, catalog Catalog, productID string, logger zerolog.Logger) *Handler {
	return &Handler{
		prices:    prices,
		catalog:   catalog,
		productID: productID,
		logger:    logger.With().Str("component", "plans").Logger(),
	}
}

// GET /plans
func (h *Handler) ListPlans(c *gin.Context) {
	list, err := h.catalog.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load plans"})
		return
	}
	c.JSON(http.StatusOK, list)
}

type syncResult struct {
	Synced  int `json:"synced"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// POST /admin/plans/sync
func (h *Handler) SyncPlansFromStripe(c *gin.Context) {
	ctx := c.Request.Context()
	prices, err := h.prices.ListRecurringPrices(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("list stripe prices failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch Stripe prices"})
		return
	}

	var res syncResult
	for _, p := range prices {
		plan, ok := h.planFromPrice(p)
		if !ok {
			res.Skipped++
			continue
		}

		created, err := h.catalog.UpsertByPriceID(ctx, plan)
		if err != nil {
			h.logger.Error().Err(err).Str("price_id", p.ID).Msg("upsert plan failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store plan"})
			return
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
		res.Synced++
	}

	h.logger.Info().
		Int("synced", res.Synced).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Msg("plans synced from stripe")
	c.JSON(http.StatusOK, res)
}

func (h *Handler) planFromPrice(p *stripe.Price) (*plans.Plan, bool) {
	if p == nil || !p.Active || p.Recurring == nil || p.Product == nil || !p.Product.Active {
		return nil, false
	}
	if h.productID != "" && p.Product.ID != h.productID {
		return nil, false
	}
	// visibility flag
	if p.Metadata["visible"] == "false" {
		return nil, false
	}

	name := p.Product.Name
	if v := p.Metadata["plan"]; v != "" {
		name = v
	}
	return &plans.Plan{
		Name:            name,
		StripePriceID:   p.ID,
		StripeProductID: p.Product.ID,
		UnitAmount:      p.UnitAmount,
		Currency:        string(p.Currency),
		Interval:        string(p.Recurring.Interval),
	}, true
}

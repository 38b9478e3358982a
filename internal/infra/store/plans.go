package store

import (
	"context"
	"errors"
	"fmt"

	"saas-starter/internal/domain/plans"

	"gorm.io/gorm"
)

var ErrPlanNotFound = errors.New("plan not found")

type PlanStore struct {
	db *gorm.DB
}

func NewPlanStore(db *gorm.DB) *PlanStore {
	return &PlanStore{db: db}
}

// List returns the catalog cheapest first.
func (s *PlanStore) List(ctx context.Context) ([]plans.Plan, error) {
	out := []plans.Plan{}
	if err := s.db.WithContext(ctx).Order("unit_amount ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list plans: %w", err)
	}
	return out, nil
}

func (s *PlanStore) GetByPriceID(ctx context.Context, priceID string) (*plans.Plan, error) {
	if priceID == "" {
		return nil, ErrPlanNotFound
	}
	var p plans.Plan
	err := s.db.WithContext(ctx).Where("stripe_price_id = ?", priceID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find plan: %w", err)
	}
	return &p, nil
}

// UpsertByPriceID inserts p or refreshes the row with the same price id.
func (s *PlanStore) UpsertByPriceID(ctx context.Context, p *plans.Plan) (created bool, err error) {
	existing, err := s.GetByPriceID(ctx, p.StripePriceID)
	switch {
	case errors.Is(err, ErrPlanNotFound):
		if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
			return false, fmt.Errorf("store: create plan %s: %w", p.StripePriceID, err)
		}
		return true, nil
	case err != nil:
		return false, err
	}

	p.ID = existing.ID
	if err := s.db.WithContext(ctx).Model(existing).
		Select("name", "stripe_product_id", "unit_amount", "currency", "interval").
		Updates(p).Error; err != nil {
		return false, fmt.Errorf("store: update plan %s: %w", p.StripePriceID, err)
	}
	return false, nil
}

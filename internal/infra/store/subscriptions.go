package store

import (
	"context"
	"errors"
	"fmt"

	"saas-starter/internal/domain/subscriptions"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionStore persists subscriptions.Subscription rows with gorm.
type SubscriptionStore struct {
	db *gorm.DB
}

func NewSubscriptionStore(db *gorm.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// columns written on every reconcile; last_event_at is added only when set.
var reconciledColumns = []string{
	"user_id",
	"stripe_customer_id",
	"stripe_subscription_id",
	"status",
	"price_id",
	"current_period_start",
	"current_period_end",
	"cancel_at_period_end",
	"canceled_at",
	"updated_at",
}

func (s *SubscriptionStore) FindByCustomerID(ctx context.Context, customerID string) (*subscriptions.Subscription, error) {
	return s.findOne(ctx, "stripe_customer_id = ?", customerID)
}

func (s *SubscriptionStore) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*subscriptions.Subscription, error) {
	return s.findOne(ctx, "stripe_subscription_id = ?", subscriptionID)
}

func (s *SubscriptionStore) FindByUserID(ctx context.Context, userID string) (*subscriptions.Subscription, error) {
	return s.findOne(ctx, "user_id = ?", userID)
}

func (s *SubscriptionStore) findOne(ctx context.Context, query string, arg string) (*subscriptions.Subscription, error) {
	if arg == "" {
		return nil, subscriptions.ErrNotFound
	}
	var rec subscriptions.Subscription
	err := s.db.WithContext(ctx).Where(query, arg).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, subscriptions.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find subscription: %w", err)
	}
	return &rec, nil
}

// UpsertBySubscriptionID inserts rec, or updates the row already holding the
// same stripe_subscription_id. A collision on any other unique column is
// reported as subscriptions.ErrDuplicate.
func (s *SubscriptionStore) UpsertBySubscriptionID(ctx context.Context, rec *subscriptions.Subscription) error {
	cols := columnsFor(rec)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_subscription_id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(rec).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", subscriptions.ErrDuplicate, err)
	}
	if err != nil {
		return fmt.Errorf("store: upsert subscription: %w", err)
	}
	return nil
}

// Update overwrites the reconciled columns of row id with rec.
func (s *SubscriptionStore) Update(ctx context.Context, id uint, rec *subscriptions.Subscription) error {
	res := s.db.WithContext(ctx).
		Model(&subscriptions.Subscription{ID: id}).
		Select(columnsFor(rec)).
		Updates(rec)
	if isUniqueViolation(res.Error) {
		return fmt.Errorf("%w: %v", subscriptions.ErrDuplicate, res.Error)
	}
	if res.Error != nil {
		return fmt.Errorf("store: update subscription: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return subscriptions.ErrNotFound
	}
	return nil
}

// EnsureCustomer makes sure userID has a row carrying customerID, creating an
// incomplete placeholder when the user has none. Used before checkout so the
// first webhook can resolve the user by customer id.
func (s *SubscriptionStore) EnsureCustomer(ctx context.Context, userID, customerID, priceID string) (*subscriptions.Subscription, error) {
	existing, err := s.FindByUserID(ctx, userID)
	switch {
	case errors.Is(err, subscriptions.ErrNotFound):
		rec := &subscriptions.Subscription{
			UserID:           userID,
			StripeCustomerID: &customerID,
			Status:           subscriptions.StatusIncomplete,
			PriceID:          priceID,
		}
		if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: %v", subscriptions.ErrDuplicate, err)
			}
			return nil, fmt.Errorf("store: create placeholder subscription: %w", err)
		}
		return rec, nil
	case err != nil:
		return nil, err
	}

	if existing.StripeCustomerID != nil && *existing.StripeCustomerID == customerID {
		return existing, nil
	}
	err = s.db.WithContext(ctx).
		Model(existing).
		Update("stripe_customer_id", customerID).Error
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %v", subscriptions.ErrDuplicate, err)
	}
	if err != nil {
		return nil, fmt.Errorf("store: link customer: %w", err)
	}
	existing.StripeCustomerID = &customerID
	return existing, nil
}

// ListByUserIDs returns subscriptions keyed by user id.
func (s *SubscriptionStore) ListByUserIDs(ctx context.Context, userIDs []string) (map[string]subscriptions.Subscription, error) {
	out := make(map[string]subscriptions.Subscription, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []subscriptions.Subscription
	if err := s.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list subscriptions: %w", err)
	}
	for _, r := range rows {
		out[r.UserID] = r
	}
	return out, nil
}

func columnsFor(rec *subscriptions.Subscription) []string {
	cols := append([]string(nil), reconciledColumns...)
	if rec.LastEventAt != nil {
		cols = append(cols, "last_event_at")
	}
	return cols
}

// CountByStatus returns the number of rows per status.
func (s *SubscriptionStore) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	if err := s.db.WithContext(ctx).
		Model(&subscriptions.Subscription{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: count subscriptions: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

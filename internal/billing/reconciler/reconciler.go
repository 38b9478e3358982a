// Package reconciler keeps the local subscriptions table in line with the
// billing provider's view of each customer.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saas-starter/internal/domain/subscriptions"

	"github.com/rs/zerolog"
)

// Snapshot is the provider's state of one subscription at the time of an event.
type Snapshot struct {
	SubscriptionID     string
	CustomerID         string
	Status             string // raw provider status
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time

	// ReferenceID is the client supplied id carried through checkout, if any.
	ReferenceID string

	EventID        string
	EventCreatedAt time.Time
}

type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeUpdated    Outcome = "updated"
	OutcomeStale      Outcome = "stale"
	OutcomeUnresolved Outcome = "unresolved"
)

type Result struct {
	Outcome Outcome
	UserID  string
	Record  *subscriptions.Subscription
}

// Store is the subscription table as seen by the reconciler. Finders return
// subscriptions.ErrNotFound when no row matches; writes return
// subscriptions.ErrDuplicate on a unique violation.
type Store interface {
	FindByCustomerID(ctx context.Context, customerID string) (*subscriptions.Subscription, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*subscriptions.Subscription, error)
	FindByUserID(ctx context.Context, userID string) (*subscriptions.Subscription, error)
	UpsertBySubscriptionID(ctx context.Context, rec *subscriptions.Subscription) error
	Update(ctx context.Context, id uint, rec *subscriptions.Subscription) error
}

type Reconciler struct {
	store     Store
	resolvers []Resolver
	logger    zerolog.Logger
}

// New builds a Reconciler that tries resolvers in the given order.
func New(store Store, logger zerolog.Logger, resolvers ...Resolver) *Reconciler {
	return &Reconciler{
		store:     store,
		resolvers: resolvers,
		logger:    logger.With().Str("component", "reconciler").Logger(),
	}
}

// Reconcile resolves the owning user for snap and writes the full record.
// An unresolvable user is not an error: the event is dropped and reported as
// OutcomeUnresolved. Store failures are returned so the provider redelivers.
func (r *Reconciler) Reconcile(ctx context.Context, snap Snapshot) (Result, error) {
	if snap.SubscriptionID == "" || snap.CustomerID == "" {
		return Result{}, errors.New("reconcile: snapshot missing subscription or customer id")
	}

	log := r.logger.With().
		Str("event_id", snap.EventID).
		Str("subscription_id", snap.SubscriptionID).
		Str("customer_id", snap.CustomerID).
		Logger()

	userID, via, err := r.resolveUser(ctx, snap)
	if err != nil {
		return Result{}, err
	}
	if userID == "" {
		log.Warn().
			Str("reference_id", snap.ReferenceID).
			Msg("no user found for stripe customer, dropping event")
		return Result{Outcome: OutcomeUnresolved}, nil
	}
	log = log.With().Str("user_id", userID).Str("resolved_via", via).Logger()

	rec := recordFromSnapshot(userID, snap)

	existing, err := r.findExisting(ctx, snap.CustomerID, snap.SubscriptionID, userID)
	if err != nil {
		return Result{}, err
	}

	if existing != nil {
		if existing.IsStaleFor(snap.EventCreatedAt) {
			log.Info().Time("last_event_at", *existing.LastEventAt).Msg("skipping out-of-order event")
			return Result{Outcome: OutcomeStale, UserID: userID, Record: existing}, nil
		}
		if err := r.store.Update(ctx, existing.ID, rec); err != nil {
			return Result{}, fmt.Errorf("reconcile: update subscription %d: %w", existing.ID, err)
		}
		rec.ID = existing.ID
		log.Info().Uint("row_id", existing.ID).Str("status", string(rec.Status)).Msg("subscription updated")
		return Result{Outcome: OutcomeUpdated, UserID: userID, Record: rec}, nil
	}

	err = r.store.UpsertBySubscriptionID(ctx, rec)
	if err == nil {
		log.Info().Str("status", string(rec.Status)).Msg("subscription inserted")
		return Result{Outcome: OutcomeCreated, UserID: userID, Record: rec}, nil
	}
	if !errors.Is(err, subscriptions.ErrDuplicate) {
		return Result{}, fmt.Errorf("reconcile: insert subscription: %w", err)
	}

	// A concurrent delivery for the same customer or user won the insert.
	log.Debug().Err(err).Msg("insert raced, retrying as update")
	raced, ferr := r.findRaced(ctx, snap.CustomerID, userID)
	if ferr != nil {
		return Result{}, ferr
	}
	if raced == nil {
		return Result{}, fmt.Errorf("reconcile: duplicate key but no conflicting row: %w", err)
	}
	if raced.IsStaleFor(snap.EventCreatedAt) {
		return Result{Outcome: OutcomeStale, UserID: userID, Record: raced}, nil
	}
	if err := r.store.Update(ctx, raced.ID, rec); err != nil {
		return Result{}, fmt.Errorf("reconcile: update after race %d: %w", raced.ID, err)
	}
	rec.ID = raced.ID
	log.Info().Uint("row_id", raced.ID).Msg("subscription updated after race")
	return Result{Outcome: OutcomeUpdated, UserID: userID, Record: rec}, nil
}

func (r *Reconciler) resolveUser(ctx context.Context, snap Snapshot) (userID, via string, err error) {
	for _, res := range r.resolvers {
		id, err := res.Resolve(ctx, snap)
		if err != nil {
			return "", "", fmt.Errorf("reconcile: resolver %s: %w", res.Name(), err)
		}
		if id != "" {
			return id, res.Name(), nil
		}
		r.logger.Debug().Str("resolver", res.Name()).Str("customer_id", snap.CustomerID).Msg("resolver found no user")
	}
	return "", "", nil
}

// findExisting looks up the row to update by customer, then subscription,
// then user id.
func (r *Reconciler) findExisting(ctx context.Context, customerID, subscriptionID, userID string) (*subscriptions.Subscription, error) {
	lookups := []struct {
		name string
		find func() (*subscriptions.Subscription, error)
	}{
		{"customer", func() (*subscriptions.Subscription, error) { return r.store.FindByCustomerID(ctx, customerID) }},
		{"subscription", func() (*subscriptions.Subscription, error) { return r.store.FindBySubscriptionID(ctx, subscriptionID) }},
		{"user", func() (*subscriptions.Subscription, error) { return r.store.FindByUserID(ctx, userID) }},
	}
	for _, l := range lookups {
		rec, err := l.find()
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, subscriptions.ErrNotFound) {
			return nil, fmt.Errorf("reconcile: find by %s: %w", l.name, err)
		}
	}
	return nil, nil
}

func (r *Reconciler) findRaced(ctx context.Context, customerID, userID string) (*subscriptions.Subscription, error) {
	rec, err := r.store.FindByCustomerID(ctx, customerID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, subscriptions.ErrNotFound) {
		return nil, fmt.Errorf("reconcile: re-query by customer: %w", err)
	}
	rec, err = r.store.FindByUserID(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, subscriptions.ErrNotFound) {
		return nil, fmt.Errorf("reconcile: re-query by user: %w", err)
	}
	return nil, nil
}

func recordFromSnapshot(userID string, snap Snapshot) *subscriptions.Subscription {
	customerID := snap.CustomerID
	subscriptionID := snap.SubscriptionID
	rec := &subscriptions.Subscription{
		UserID:               userID,
		StripeCustomerID:     &customerID,
		StripeSubscriptionID: &subscriptionID,
		Status:               subscriptions.MapProviderStatus(snap.Status),
		PriceID:              snap.PriceID,
		CurrentPeriodStart:   timePtr(snap.CurrentPeriodStart),
		CurrentPeriodEnd:     timePtr(snap.CurrentPeriodEnd),
		CancelAtPeriodEnd:    snap.CancelAtPeriodEnd,
		CanceledAt:           snap.CanceledAt,
		LastEventAt:          timePtr(snap.EventCreatedAt),
	}
	return rec
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	t = t.UTC()
	return &t
}

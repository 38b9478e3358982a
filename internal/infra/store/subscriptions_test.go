package store

import (
	"context"
	"testing"
	"time"

	"saas-starter/internal/domain/subscriptions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionStore_FindNotFound(t *testing.T) {
	s := NewSubscriptionStore(newTestDB(t))
	ctx := context.Background()

	_, err := s.FindByCustomerID(ctx, "cus_missing")
	assert.ErrorIs(t, err, subscriptions.ErrNotFound)
	_, err = s.FindBySubscriptionID(ctx, "")
	assert.ErrorIs(t, err, subscriptions.ErrNotFound)
	_, err = s.FindByUserID(ctx, "nobody")
	assert.ErrorIs(t, err, subscriptions.ErrNotFound)
}

func TestSubscriptionStore_UpsertInsertsThenUpdatesOnSubscriptionID(t *testing.T) {
	s := NewSubscriptionStore(newTestDB(t))
	ctx := context.Background()

	rec := &subscriptions.Subscription{
		UserID:               "user_1",
		StripeCustomerID:     strPtr("cus_1"),
		StripeSubscriptionID: strPtr("sub_1"),
		Status:               subscriptions.StatusIncomplete,
		PriceID:              "price_a",
	}
	require.NoError(t, s.UpsertBySubscriptionID(ctx, rec))

	again := &subscriptions.Subscription{
		UserID:               "user_1",
		StripeCustomerID:     strPtr("cus_1"),
		StripeSubscriptionID: strPtr("sub_1"),
		Status:               subscriptions.StatusActive,
		PriceID:              "price_b",
		CancelAtPeriodEnd:    true,
	}
	require.NoError(t, s.UpsertBySubscriptionID(ctx, again))

	got, err := s.FindBySubscriptionID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusActive, got.Status)
	assert.Equal(t, "price_b", got.PriceID)
	assert.True(t, got.CancelAtPeriodEnd)

	var count int64
	require.NoError(t, s.db.Model(&subscriptions.Subscription{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSubscriptionStore_UpsertReportsDuplicateCustomer(t *testing.T) {
	s := NewSubscriptionStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.UpsertBySubscriptionID(ctx, &subscriptions.Subscription{
		UserID:               "user_1",
		StripeCustomerID:     strPtr("cus_1"),
		StripeSubscriptionID: strPtr("sub_1"),
		Status:               subscriptions.StatusActive,
	}))

	err := s.UpsertBySubscriptionID(ctx, &subscriptions.Subscription{
		UserID:               "user_2",
		StripeCustomerID:     strPtr("cus_1"),
		StripeSubscriptionID: strPtr("sub_2"),
		Status:               subscriptions.StatusActive,
	})
	assert.ErrorIs(t, err, subscriptions.ErrDuplicate)
}

func TestSubscriptionStore_UpdateKeepsLastEventWhenUnset(t *testing.T) {
	s := NewSubscriptionStore(newTestDB(t))
	ctx := context.Background()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, s.UpsertBySubscriptionID(ctx, &subscriptions.Subscription{
		UserID:               "user_1",
		StripeCustomerID:     strPtr("cus_1"),
		StripeSubscriptionID: strPtr("sub_1"),
		Status:               subscriptions.StatusActive,
		LastEventAt:          &at,
	}))
	row, err := s.FindByUserID(ctx, "user_1")
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, row.ID, &subscriptions.Subscription{
		UserID:               "user_1",
		StripeCustomerID:     strPtr("cus_1"),
		StripeSubscriptionID: strPtr("sub_1"),
		Status:               subscriptions.StatusPastDue,
	}))

	got, err := s.FindByUserID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusPastDue, got.Status)
	require.NotNil(t, got.LastEventAt)
	assert.True(t, at.Equal(*got.LastEventAt))
}

func TestSubscriptionStore_UpdateMissingRow(t *testing.T) {
	s := NewSubscriptionStore(newTestDB(t))
	err := s.Update(context.Background(), 42, &subscriptions.Subscription{UserID: "u", Status: subscriptions.StatusActive})
	assert.ErrorIs(t, err, subscriptions.ErrNotFound)
}

func TestSubscriptionStore_EnsureCustomer(t *testing.T) {
	s := NewSubscriptionStore(newTestDB(t))
	ctx := context.Background()

	rec, err := s.EnsureCustomer(ctx, "user_1", "cus_1", "price_a")
	require.NoError(t, err)
	assert.Equal(t, subscriptions.StatusIncomplete, rec.Status)
	assert.Nil(t, rec.StripeSubscriptionID)

	// idempotent for the same customer
	again, err := s.EnsureCustomer(ctx, "user_1", "cus_1", "price_b")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID)

	// relinks a new customer onto the existing row
	relinked, err := s.EnsureCustomer(ctx, "user_1", "cus_2", "price_a")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, relinked.ID)
	got, err := s.FindByCustomerID(ctx, "cus_2")
	require.NoError(t, err)
	assert.Equal(t, "user_1", got.UserID)

	// a customer already owned by someone else is a duplicate
	_, err = s.EnsureCustomer(ctx, "user_2", "cus_2", "price_a")
	assert.ErrorIs(t, err, subscriptions.ErrDuplicate)
}

func TestSubscriptionStore_ListByUserIDs(t *testing.T) {
	s := NewSubscriptionStore(newTestDB(t))
	ctx := context.Background()

	_, err := s.EnsureCustomer(ctx, "user_1", "cus_1", "")
	require.NoError(t, err)
	_, err = s.EnsureCustomer(ctx, "user_2", "cus_2", "")
	require.NoError(t, err)

	got, err := s.ListByUserIDs(ctx, []string{"user_1", "user_3"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "cus_1", *got["user_1"].StripeCustomerID)

	empty, err := s.ListByUserIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

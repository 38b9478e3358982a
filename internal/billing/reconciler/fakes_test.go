package reconciler

import (
	"context"
	"errors"
	"sync"

	"saas-starter/internal/domain/subscriptions"
	"saas-starter/internal/domain/users"
)

// memStore enforces the same unique columns as the subscriptions table.
type memStore struct {
	mu     sync.Mutex
	rows   map[uint]subscriptions.Subscription
	nextID uint

	// upsertHook runs before UpsertBySubscriptionID; a non-nil error is returned as-is.
	upsertHook func(rec *subscriptions.Subscription) error
	findErr    error
}

func newMemStore() *memStore {
	return &memStore{rows: map[uint]subscriptions.Subscription{}, nextID: 1}
}

func (m *memStore) find(match func(subscriptions.Subscription) bool) (*subscriptions.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, r := range m.rows {
		if match(r) {
			cp := r
			return &cp, nil
		}
	}
	return nil, subscriptions.ErrNotFound
}

func (m *memStore) FindByCustomerID(_ context.Context, id string) (*subscriptions.Subscription, error) {
	return m.find(func(r subscriptions.Subscription) bool { return eq(r.StripeCustomerID, id) })
}

func (m *memStore) FindBySubscriptionID(_ context.Context, id string) (*subscriptions.Subscription, error) {
	return m.find(func(r subscriptions.Subscription) bool { return eq(r.StripeSubscriptionID, id) })
}

func (m *memStore) FindByUserID(_ context.Context, id string) (*subscriptions.Subscription, error) {
	return m.find(func(r subscriptions.Subscription) bool { return r.UserID == id })
}

func (m *memStore) UpsertBySubscriptionID(_ context.Context, rec *subscriptions.Subscription) error {
	if m.upsertHook != nil {
		if err := m.upsertHook(rec); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rows {
		if rec.StripeSubscriptionID != nil && eq(r.StripeSubscriptionID, *rec.StripeSubscriptionID) {
			return m.writeLocked(id, rec)
		}
	}
	return m.writeLocked(0, rec)
}

func (m *memStore) Update(_ context.Context, id uint, rec *subscriptions.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return subscriptions.ErrNotFound
	}
	return m.writeLocked(id, rec)
}

func (m *memStore) writeLocked(id uint, rec *subscriptions.Subscription) error {
	for rid, r := range m.rows {
		if rid == id {
			continue
		}
		if r.UserID == rec.UserID ||
			(rec.StripeCustomerID != nil && eq(r.StripeCustomerID, *rec.StripeCustomerID)) ||
			(rec.StripeSubscriptionID != nil && eq(r.StripeSubscriptionID, *rec.StripeSubscriptionID)) {
			return subscriptions.ErrDuplicate
		}
	}
	cp := *rec
	if id == 0 {
		id = m.nextID
		m.nextID++
	} else if cp.LastEventAt == nil {
		cp.LastEventAt = m.rows[id].LastEventAt
	}
	cp.ID = id
	m.rows[id] = cp
	return nil
}

// insertRaw seeds a row bypassing reconciliation.
func (m *memStore) insertRaw(rec subscriptions.Subscription) uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = m.nextID
	m.nextID++
	m.rows[rec.ID] = rec
	return rec.ID
}

func (m *memStore) all() []subscriptions.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]subscriptions.Subscription, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out
}

func eq(p *string, s string) bool { return p != nil && *p == s }

type memUsers struct {
	byID map[string]users.User
	err  error
}

func newMemUsers(us ...users.User) *memUsers {
	m := &memUsers{byID: map[string]users.User{}}
	for _, u := range us {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*users.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*users.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.byID {
		if users.NormalizeEmail(u.Email) == users.NormalizeEmail(email) {
			cp := u
			return &cp, nil
		}
	}
	return nil, users.ErrNotFound
}

type memCustomers struct {
	byID  map[string]*Customer
	calls int
	err   error
}

func (m *memCustomers) GetCustomer(_ context.Context, id string) (*Customer, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.byID[id], nil
}

var errBoom = errors.New("boom")

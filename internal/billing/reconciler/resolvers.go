package reconciler

import (
	"context"
	"errors"
	"strings"

	"saas-starter/internal/domain/subscriptions"
	"saas-starter/internal/domain/users"
)

// MetadataUserIDKey is the Stripe metadata key holding our user id.
const MetadataUserIDKey = "user_id"

// Resolver is one strategy for finding the user that owns a Stripe customer.
// Resolve returns "" with a nil error when the strategy does not apply or
// finds nothing; errors are reserved for infrastructure failures.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, snap Snapshot) (string, error)
}

// UserDirectory looks up users. Lookups return users.ErrNotFound when absent.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id string) (*users.User, error)
	GetUserByEmail(ctx context.Context, email string) (*users.User, error)
}

// Customer is the slice of a billing-provider customer the resolvers need.
type Customer struct {
	ID       string
	Email    string
	Metadata map[string]string
	Deleted  bool
}

// CustomerSource fetches customers from the billing provider.
type CustomerSource interface {
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
}

// DefaultResolvers returns the resolution chain in its fixed order: local
// record, checkout reference id, customer metadata, customer email.
func DefaultResolvers(store Store, dir UserDirectory, customers CustomerSource) []Resolver {
	return []Resolver{
		CustomerRecordResolver{Store: store},
		ClientReferenceResolver{Users: dir},
		CustomerMetadataResolver{Customers: customers, Users: dir},
		CustomerEmailResolver{Customers: customers, Users: dir},
	}
}

type CustomerRecordResolver struct {
	Store Store
}

func (CustomerRecordResolver) Name() string { return "customer_record" }

func (r CustomerRecordResolver) Resolve(ctx context.Context, snap Snapshot) (string, error) {
	rec, err := r.Store.FindByCustomerID(ctx, snap.CustomerID)
	if errors.Is(err, subscriptions.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.UserID, nil
}

type ClientReferenceResolver struct {
	Users UserDirectory
}

func (ClientReferenceResolver) Name() string { return "client_reference" }

func (r ClientReferenceResolver) Resolve(ctx context.Context, snap Snapshot) (string, error) {
	if snap.ReferenceID == "" {
		return "", nil
	}
	return userByID(ctx, r.Users, snap.ReferenceID)
}

type CustomerMetadataResolver struct {
	Customers CustomerSource
	Users     UserDirectory
}

func (CustomerMetadataResolver) Name() string { return "customer_metadata" }

func (r CustomerMetadataResolver) Resolve(ctx context.Context, snap Snapshot) (string, error) {
	cus, err := r.Customers.GetCustomer(ctx, snap.CustomerID)
	if err != nil || cus == nil || cus.Deleted {
		return "", err
	}
	id := strings.TrimSpace(cus.Metadata[MetadataUserIDKey])
	if id == "" {
		return "", nil
	}
	return userByID(ctx, r.Users, id)
}

type CustomerEmailResolver struct {
	Customers CustomerSource
	Users     UserDirectory
}

func (CustomerEmailResolver) Name() string { return "customer_email" }

func (r CustomerEmailResolver) Resolve(ctx context.Context, snap Snapshot) (string, error) {
	cus, err := r.Customers.GetCustomer(ctx, snap.CustomerID)
	if err != nil || cus == nil || cus.Deleted {
		return "", err
	}
	email := users.NormalizeEmail(cus.Email)
	if email == "" {
		return "", nil
	}
	u, err := r.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, users.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func userByID(ctx context.Context, dir UserDirectory, id string) (string, error) {
	u, err := dir.GetUserByID(ctx, id)
	if errors.Is(err, users.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

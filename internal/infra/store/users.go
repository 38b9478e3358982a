package store

import (
	"context"
	"errors"
	"fmt"

	"saas-starter/internal/domain/users"

	"gorm.io/gorm"
)

// UserDirectory is the gorm-backed source of user identities.
type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) GetUserByID(ctx context.Context, id string) (*users.User, error) {
	if id == "" {
		return nil, users.ErrNotFound
	}
	return d.first(ctx, "id = ?", id)
}

// GetUserByEmail matches case-insensitively.
func (d *UserDirectory) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	email = users.NormalizeEmail(email)
	if email == "" {
		return nil, users.ErrNotFound
	}
	return d.first(ctx, "LOWER(email) = ?", email)
}

func (d *UserDirectory) GetUserByGoogleSub(ctx context.Context, sub string) (*users.User, error) {
	if sub == "" {
		return nil, users.ErrNotFound
	}
	return d.first(ctx, "google_sub = ?", sub)
}

// ListUsers returns every user, newest first.
func (d *UserDirectory) ListUsers(ctx context.Context) ([]users.User, error) {
	var out []users.User
	if err := d.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	return out, nil
}

func (d *UserDirectory) CreateUser(ctx context.Context, u *users.User) error {
	err := d.db.WithContext(ctx).Create(u).Error
	if isUniqueViolation(err) {
		return users.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("store: create user: %w", err)
	}
	return nil
}

func (d *UserDirectory) first(ctx context.Context, query string, arg string) (*users.User, error) {
	var u users.User
	err := d.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find user: %w", err)
	}
	return &u, nil
}

func (d *UserDirectory) MarkVerified(ctx context.Context, id string) error {
	return d.update(ctx, id, map[string]any{"is_verified": true})
}

// SetPassword stores an already hashed password.
func (d *UserDirectory) SetPassword(ctx context.Context, id, hash string) error {
	return d.update(ctx, id, map[string]any{"password": hash})
}

// LinkGoogle attaches a Google subject to an existing account and marks it
// verified, Google having confirmed the address.
func (d *UserDirectory) LinkGoogle(ctx context.Context, id, sub string) error {
	return d.update(ctx, id, map[string]any{
		"google_sub":    sub,
		"auth_provider": users.ProviderGoogle,
		"is_verified":   true,
	})
}

func (d *UserDirectory) update(ctx context.Context, id string, cols map[string]any) error {
	res := d.db.WithContext(ctx).Model(&users.User{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("store: update user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return users.ErrNotFound
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"saas-starter/internal/domain/users"

	"gorm.io/gorm"
)

// TokenStore persists email verification and password reset tokens.
type TokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Replace drops the user's earlier tokens of the same type and stores t.
func (s *TokenStore) Replace(ctx context.Context, t *users.VerificationToken) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND type = ?", t.UserID, t.Type).
			Delete(&users.VerificationToken{}).Error; err != nil {
			return fmt.Errorf("store: clear tokens: %w", err)
		}
		if err := tx.Create(t).Error; err != nil {
			return fmt.Errorf("store: create token: %w", err)
		}
		return nil
	})
}

func (s *TokenStore) Find(ctx context.Context, token, typ string) (*users.VerificationToken, error) {
	if token == "" {
		return nil, users.ErrNotFound
	}
	var t users.VerificationToken
	err := s.db.WithContext(ctx).Where("token = ? AND type = ?", token, typ).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find token: %w", err)
	}
	return &t, nil
}

func (s *TokenStore) Delete(ctx context.Context, id uint) error {
	if err := s.db.WithContext(ctx).Delete(&users.VerificationToken{}, id).Error; err != nil {
		return fmt.Errorf("store: delete token: %w", err)
	}
	return nil
}

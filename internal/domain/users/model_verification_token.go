package users

import "time"

const (
	TokenEmailVerification = "email_verification"
	TokenPasswordReset     = "password_reset"
)

type VerificationToken struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"type:varchar(36);index"`
	User      User   `gorm:"constraint:OnDelete:CASCADE"`
	Token     string `gorm:"uniqueIndex"`
	Type      string `gorm:"index"`
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (t VerificationToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(now)
}

// Package authtoken issues and validates the HS256 session tokens handed to
// clients after login.
package authtoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTTL = 24 * time.Hour

var ErrInvalid = errors.New("invalid or expired token")

type Claims struct {
	UserID string
	Email  string
	Role   string
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (i *Issuer) Issue(c Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": c.UserID,
		"email":   c.Email,
		"role":    c.Role,
		"exp":     i.now().Add(i.ttl).Unix(),
	})
	s, err := t.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("authtoken: sign: %w", err)
	}
	return s, nil
}

func (i *Issuer) Parse(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalid
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalid
	}
	var c Claims
	c.UserID, _ = mc["user_id"].(string)
	c.Email, _ = mc["email"].(string)
	c.Role, _ = mc["role"].(string)
	if c.UserID == "" {
		return Claims{}, ErrInvalid
	}
	return c, nil
}

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"saas-starter/internal/domain/users"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleIssuer     = "https://accounts.google.com"
	oauthStateName   = "oauth_state"
	oauthStateMaxAge = 300
)

type GoogleConfig struct {
	ClientID         string
	ClientSecret     string
	RedirectURL      string
	FrontendRedirect string
	SecureCookie     bool
}

type googleIDClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
}

// idTokenVerifier checks a raw Google ID token and returns its claims.
type idTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*googleIDClaims, error)
}

type codeExchanger interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// GoogleHandler runs the OAuth code flow and signs users in by their
// verified Google identity.
type GoogleHandler struct {
	*Handler
	cfg      GoogleConfig
	oauth    codeExchanger
	verifier idTokenVerifier
}

func (h *Handler) Google(cfg GoogleConfig) *GoogleHandler {
	return &GoogleHandler{
		Handler: h,
		cfg:     cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		verifier: &oidcVerifier{clientID: cfg.ClientID},
	}
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GET /auth/google
func (g *GoogleHandler) GoogleStart(c *gin.Context) {
	state, err := randomState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate state"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateName, state, oauthStateMaxAge, "/", "", g.cfg.SecureCookie, true)

	c.Redirect(http.StatusFound, g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// GET /auth/google/callback
func (g *GoogleHandler) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code/state"})
		return
	}

	cookieState, err := c.Cookie(oauthStateName)
	if err != nil || cookieState != state {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie(oauthStateName, "", -1, "/", "", g.cfg.SecureCookie, true)

	ctx := c.Request.Context()
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		g.logger.Warn().Err(err).Msg("google code exchange failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "failed to exchange code"})
		return
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing id_token"})
		return
	}

	claims, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		g.logger.Warn().Err(err).Msg("google id token rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid id_token"})
		return
	}

	user, err := g.findOrCreateGoogleUser(ctx, claims)
	if err != nil {
		g.logger.Error().Err(err).Msg("google sign-in failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign in"})
		return
	}

	tokenString, err := g.issueToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create token"})
		return
	}

	if g.cfg.FrontendRedirect == "" {
		c.JSON(http.StatusOK, gin.H{"token": tokenString})
		return
	}
	c.Redirect(http.StatusFound, g.cfg.FrontendRedirect+"?token="+url.QueryEscape(tokenString))
}

// findOrCreateGoogleUser matches by Google subject, then by email (linking
// the subject), and otherwise creates a verified Google user.
func (g *GoogleHandler) findOrCreateGoogleUser(ctx context.Context, gc *googleIDClaims) (*users.User, error) {
	user, err := g.users.GetUserByGoogleSub(ctx, gc.Sub)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}

	user, err = g.users.GetUserByEmail(ctx, gc.Email)
	switch {
	case err == nil:
		if user.GoogleSub == nil {
			if err := g.users.LinkGoogle(ctx, user.ID, gc.Sub); err != nil {
				return nil, err
			}
			sub := gc.Sub
			user.GoogleSub = &sub
			user.IsVerified = true
		}
		return user, nil
	case !errors.Is(err, users.ErrNotFound):
		return nil, err
	}

	sub := gc.Sub
	user = &users.User{
		Name:         firstNonEmpty(gc.GivenName, gc.Name),
		Email:        gc.Email,
		AuthProvider: users.ProviderGoogle,
		GoogleSub:    &sub,
		Role:         users.RoleUser,
		IsVerified:   true,
	}
	if err := g.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// oidcVerifier does full signature verification against Google's JWKS.
// The provider is discovered on first use.
type oidcVerifier struct {
	clientID string

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

func (v *oidcVerifier) Verify(ctx context.Context, rawIDToken string) (*googleIDClaims, error) {
	verifier, err := v.get(ctx)
	if err != nil {
		return nil, err
	}

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}

	var claims googleIDClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id token claims: %w", err)
	}
	if claims.Email == "" || claims.Sub == "" {
		return nil, errors.New("id token missing required claims")
	}
	if !claims.EmailVerified {
		return nil, errors.New("google email not verified")
	}
	return &claims, nil
}

func (v *oidcVerifier) get(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.verifier != nil {
		return v.verifier, nil
	}
	// discovery must outlive the request that triggered it
	provider, err := oidc.NewProvider(context.WithoutCancel(ctx), googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("init google oidc provider: %w", err)
	}
	v.verifier = provider.Verifier(&oidc.Config{ClientID: v.clientID})
	return v.verifier, nil
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"saas-starter/internal/app/http/middleware"
	"saas-starter/internal/domain/users"
	"saas-starter/internal/infra/authtoken"
	"saas-starter/internal/infra/mailer"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	verificationTTL = 48 * time.Hour
	resetTTL        = time.Hour
)

type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*users.User, error)
	GetUserByEmail(ctx context.Context, email string) (*users.User, error)
	GetUserByGoogleSub(ctx context.Context, sub string) (*users.User, error)
	CreateUser(ctx context.Context, u *users.User) error
	SetPassword(ctx context.Context, id, hash string) error
	LinkGoogle(ctx context.Context, id, sub string) error
}

type TokenStore interface {
	Replace(ctx context.Context, t *users.VerificationToken) error
	Find(ctx context.Context, token, typ string) (*users.VerificationToken, error)
	Delete(ctx context.Context, id uint) error
}

type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type TokenIssuer interface {
	Issue(c authtoken.Claims) (string, error)
}

type Links struct {
	APIURL string // verification links point here
	AppURL string // password reset page lives here
}

type Handler struct {
	users  UserStore
	tokens TokenStore
	mailer Mailer
	issuer TokenIssuer
	links  Links
	logger zerolog.Logger
	now    func() time.Time
}

func NewHandler(us UserStore, ts TokenStore, m Mailer, iss TokenIssuer, links Links, logger zerolog.Logger) *Handler {
	return &Handler{
		users:  us,
		tokens: ts,
		mailer: m,
		issuer: iss,
		links:  links,
		logger: logger.With().Str("component", "auth").Logger(),
		now:    time.Now,
	}
}

func isPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, c := range password {
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z':
			hasLetter = true
		case '0' <= c && c <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func isEmailValid(email string) bool {
	return emailPattern.MatchString(email)
}

func generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (h *Handler) Register(c *gin.Context) {
	var input struct {
		Name     string `json:"name"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	email := users.NormalizeEmail(input.Email)
	if !isEmailValid(email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return
	}
	if !isPasswordStrong(input.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters long and contain both letters and numbers"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	hashed := string(hashedPassword)

	ctx := c.Request.Context()
	user := users.User{
		Name:         input.Name,
		Email:        email,
		Password:     &hashed,
		AuthProvider: users.ProviderLocal,
		Role:         users.RoleUser,
	}
	if err := h.users.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		h.logger.Error().Err(err).Msg("create user failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	if err := h.sendVerification(ctx, &user); err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("verification email failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send verification email"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully. Please check your email to verify your account.",
		"user_id": user.ID,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), input.Email)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			h.logger.Error().Err(err).Msg("login lookup failed")
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if user.Password == nil || *user.Password == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "This account uses Google sign-in"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !user.IsVerified {
		c.JSON(http.StatusForbidden, gin.H{"error": "Please verify your email before logging in"})
		return
	}

	tokenString, err := h.issueToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": tokenString})
}

func (h *Handler) ResendVerification(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid email"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetUserByEmail(ctx, body.Email)
	if errors.Is(err, users.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	if user.IsVerified {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User already verified"})
		return
	}

	if err := h.sendVerification(ctx, user); err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("resend verification failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send verification email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Verification email resent"})
}

const resetRequestedMessage = "If your email exists, you'll receive a reset link."

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetUserByEmail(ctx, body.Email)
	if err != nil {
		// Don't expose whether the email exists
		if !errors.Is(err, users.ErrNotFound) {
			h.logger.Error().Err(err).Msg("reset lookup failed")
		}
		c.JSON(http.StatusOK, gin.H{"message": resetRequestedMessage})
		return
	}

	token, err := generateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}
	reset := users.VerificationToken{
		UserID:    user.ID,
		Token:     token,
		Type:      users.TokenPasswordReset,
		ExpiresAt: h.now().Add(resetTTL),
	}
	if err := h.tokens.Replace(ctx, &reset); err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("store reset token failed")
		c.JSON(http.StatusOK, gin.H{"message": resetRequestedMessage})
		return
	}

	link := h.links.AppURL + "/reset-password?token=" + url.QueryEscape(token)
	if err := h.mailer.Send(ctx, mailer.Message{
		To:      user.Email,
		Subject: "Reset your password",
		Body:    fmt.Sprintf("Use the following link to choose a new password. It expires in one hour.\n\n%s", link),
	}); err != nil {
		h.logger.Error().Err(err).Str("user_id", user.ID).Msg("reset email failed")
	}

	c.JSON(http.StatusOK, gin.H{"message": resetRequestedMessage})
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if !isPasswordStrong(body.NewPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 8 characters with letters and numbers"})
		return
	}

	ctx := c.Request.Context()
	reset, err := h.tokens.Find(ctx, body.Token, users.TokenPasswordReset)
	if err != nil || reset.Expired(h.now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	if err := h.users.SetPassword(ctx, reset.UserID, string(hashed)); err != nil {
		h.logger.Error().Err(err).Str("user_id", reset.UserID).Msg("reset password failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		return
	}

	if err := h.tokens.Delete(ctx, reset.ID); err != nil {
		h.logger.Warn().Err(err).Msg("failed to delete used reset token")
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successful"})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var body struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if !isPasswordStrong(body.NewPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New password must be at least 8 characters with letters and numbers"})
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	if user.Password == nil || *user.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "This account does not have a password. Sign in with Google or set a password first.",
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(body.OldPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Old password is incorrect"})
		return
	}

	hashedNew, err := bcrypt.GenerateFromPassword([]byte(body.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	if err := h.users.SetPassword(ctx, user.ID, string(hashedNew)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

func (h *Handler) sendVerification(ctx context.Context, user *users.User) error {
	token, err := generateToken()
	if err != nil {
		return err
	}
	if err := h.tokens.Replace(ctx, &users.VerificationToken{
		UserID:    user.ID,
		Token:     token,
		Type:      users.TokenEmailVerification,
		ExpiresAt: h.now().Add(verificationTTL),
	}); err != nil {
		return err
	}

	link := h.links.APIURL + "/auth/verify?token=" + url.QueryEscape(token)
	return h.mailer.Send(ctx, mailer.Message{
		To:      user.Email,
		Subject: "Verify your account",
		Body:    fmt.Sprintf("Click the following link to verify your account:\n\n%s", link),
	})
}

func (h *Handler) issueToken(user *users.User) (string, error) {
	return h.issuer.Issue(authtoken.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
}

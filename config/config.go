package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   string
	AppEnv string
	AppURL string
	APIURL string

	DBURL     string
	JWTSecret string

	CORSOrigin string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeProductID     string

	GoogleClientID         string
	GoogleClientSecret     string
	GoogleRedirectURL      string
	GoogleFrontendRedirect string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	RedisURL string

	LogLevel  string
	LogFormat string

	AuthRateLimitPerMinute int
}

// GoogleEnabled reports whether all Google OAuth credentials are set.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads .env when present and then the process environment.
// Every missing required variable is reported in one error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var missing []string
	must := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),
		AppURL: getEnv("APP_URL", "http://localhost:5173"),
		APIURL: getEnv("API_URL", "http://localhost:8080"),

		DBURL:     must("DB_URL"),
		JWTSecret: must("JWT_SECRET"),

		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),

		StripeSecretKey:     must("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: must("STRIPE_WEBHOOK_SECRET"),
		StripeProductID:     getEnv("STRIPE_PRODUCT_ID", ""),

		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:      getEnv("GOOGLE_REDIRECT_URL", ""),
		GoogleFrontendRedirect: getEnv("GOOGLE_FRONTEND_REDIRECT", ""),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnv("SMTP_PORT", "587"),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", ""),

		RedisURL: getEnv("REDIS_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	rate, err := strconv.Atoi(getEnv("AUTH_RATE_LIMIT_PER_MINUTE", "20"))
	if err != nil || rate < 0 {
		return nil, fmt.Errorf("config: AUTH_RATE_LIMIT_PER_MINUTE must be a non-negative integer")
	}
	cfg.AuthRateLimitPerMinute = rate

	if len(missing) > 0 {
		return nil, fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

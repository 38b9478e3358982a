package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"saas-starter/config"
	"saas-starter/database"
	adminapi "saas-starter/internal/api/admin"
	authapi "saas-starter/internal/api/auth"
	"saas-starter/internal/api/billing"
	"saas-starter/internal/api/plans"
	stripewebhooks "saas-starter/internal/api/stripewebhook"
	usersapi "saas-starter/internal/api/users"
	routes "saas-starter/internal/app/http"
	"saas-starter/internal/app/http/middleware"
	"saas-starter/internal/billing/reconciler"
	"saas-starter/internal/infra/authtoken"
	"saas-starter/internal/infra/logging"
	"saas-starter/internal/infra/mailer"
	"saas-starter/internal/infra/metrics"
	"saas-starter/internal/infra/redis"
	"saas-starter/internal/infra/store"
	"saas-starter/internal/infra/stripeapi"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	db, err := database.Open(cfg.DBURL)
	if err != nil {
		return err
	}
	logger.Info().Msg("database connected and migrated")

	deps, cleanup, err := buildDeps(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildDeps(ctx context.Context, cfg *config.Config, db *gorm.DB, logger zerolog.Logger) (routes.Deps, func(), error) {
	cleanup := func() {}

	userDir := store.NewUserDirectory(db)
	subStore := store.NewSubscriptionStore(db)
	planStore := store.NewPlanStore(db)
	tokenStore := store.NewTokenStore(db)
	ledger := store.NewWebhookLedger(db)

	stripeClient := stripeapi.New(cfg.StripeSecretKey)
	issuer := authtoken.NewIssuer(cfg.JWTSecret, authtoken.DefaultTTL)

	rec := reconciler.New(subStore, logger,
		reconciler.DefaultResolvers(subStore, userDir, stripeClient)...)

	webhookOpts := []stripewebhooks.Option{stripewebhooks.WithLedger(ledger)}
	if cfg.RedisURL != "" {
		cli, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return routes.Deps{}, cleanup, err
		}
		cleanup = func() { _ = cli.Close() }
		webhookOpts = append(webhookOpts, stripewebhooks.WithEventCache(redis.NewEventCache(cli, redis.DefaultEventTTL)))
		logger.Info().Msg("redis event cache enabled")
	}

	var mail authapi.Mailer
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTP(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
		})
	} else {
		mail = mailer.NewLog(logger)
	}

	authHandler := authapi.NewHandler(userDir, tokenStore, mail, issuer,
		authapi.Links{APIURL: cfg.APIURL, AppURL: cfg.AppURL}, logger)

	var google *authapi.GoogleHandler
	if cfg.GoogleEnabled() {
		google = authHandler.Google(authapi.GoogleConfig{
			ClientID:         cfg.GoogleClientID,
			ClientSecret:     cfg.GoogleClientSecret,
			RedirectURL:      cfg.GoogleRedirectURL,
			FrontendRedirect: cfg.GoogleFrontendRedirect,
			SecureCookie:     cfg.IsProduction(),
		})
	}

	metrics.MustRegister()

	return routes.Deps{
		Webhook: stripewebhooks.NewHandler(stripeapi.NewWebhookVerifier(cfg.StripeWebhookSecret), stripeClient, rec, logger, webhookOpts...),
		Auth:    authHandler,
		Google:  google,
		Users:   usersapi.NewHandler(userDir, subStore, planStore, tokenStore, cfg.AppURL, logger),
		Billing: billing.NewHandler(stripeClient, userDir, subStore, planStore, billing.Options{AppURL: cfg.AppURL, AppEnv: cfg.AppEnv}, logger),
		Plans:   plans.NewHandler(stripeClient, planStore, cfg.StripeProductID, logger),
		Admin:   adminapi.NewHandler(userDir, subStore, ledger),

		Tokens:        issuer,
		Subscriptions: subStore,

		AuthRateLimitPerMinute: cfg.AuthRateLimitPerMinute,
		Metrics:                promhttp.Handler(),
	}, cleanup, nil
}

package database

import (
	"fmt"

	"saas-starter/internal/domain/billing"
	"saas-starter/internal/domain/plans"
	"saas-starter/internal/domain/subscriptions"
	"saas-starter/internal/domain/users"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{
		&users.User{},
		&users.VerificationToken{},
		&plans.Plan{},
		&subscriptions.Subscription{},
		&billing.WebhookEvent{},
	}
}

// Open connects to Postgres and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("database: automigrate: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saas-starter/internal/domain/billing"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WebhookLedger records every verified Stripe delivery and how it ended.
type WebhookLedger struct {
	db *gorm.DB
}

func NewWebhookLedger(db *gorm.DB) *WebhookLedger {
	return &WebhookLedger{db: db}
}

// Received stores the event, bumping the attempt counter on redelivery.
func (l *WebhookLedger) Received(ctx context.Context, eventID, eventType string, payload []byte) error {
	ev := billing.WebhookEvent{
		ProviderEventID: eventID,
		EventType:       eventType,
		Payload:         string(payload),
		Attempts:        1,
	}
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_event_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"attempts":   gorm.Expr("billing_webhook_events.attempts + 1"),
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(&ev).Error
	if err != nil {
		return fmt.Errorf("store: record webhook event: %w", err)
	}
	return nil
}

// Finished stores the outcome, or the error if processing failed.
func (l *WebhookLedger) Finished(ctx context.Context, eventID, outcome string, procErr error) error {
	updates := map[string]interface{}{
		"outcome":          outcome,
		"processing_error": "",
	}
	if procErr != nil {
		updates["processing_error"] = procErr.Error()
	} else {
		updates["processed_at"] = time.Now().UTC()
	}
	err := l.db.WithContext(ctx).
		Model(&billing.WebhookEvent{}).
		Where("provider_event_id = ?", eventID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("store: finish webhook event: %w", err)
	}
	return nil
}

func (l *WebhookLedger) Get(ctx context.Context, eventID string) (*billing.WebhookEvent, error) {
	var ev billing.WebhookEvent
	err := l.db.WithContext(ctx).Where("provider_event_id = ?", eventID).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, billing.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get webhook event: %w", err)
	}
	return &ev, nil
}

// Recent lists the latest events, optionally only those that failed.
func (l *WebhookLedger) Recent(ctx context.Context, limit int, failedOnly bool) ([]billing.WebhookEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := l.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if failedOnly {
		q = q.Where("processing_error <> ''")
	}
	var out []billing.WebhookEvent
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list webhook events: %w", err)
	}
	return out, nil
}

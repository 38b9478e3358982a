package stripewebhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"saas-starter/internal/billing/reconciler"
	"saas-starter/internal/infra/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v75"
)

const maxBodyBytes = 65536

type Verifier interface {
	Verify(payload []byte, signature string) (stripe.Event, error)
}

type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, snap reconciler.Snapshot) (reconciler.Result, error)
}

// EventCache short-circuits redelivered events that already succeeded.
type EventCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// Ledger keeps an audit row per verified event.
type Ledger interface {
	Received(ctx context.Context, eventID, eventType string, payload []byte) error
	Finished(ctx context.Context, eventID, outcome string, procErr error) error
}

type Handler struct {
	verifier   Verifier
	subs       SubscriptionFetcher
	reconciler Reconciler
	cache      EventCache
	ledger     Ledger
	logger     zerolog.Logger
}

type Option func(*Handler)

func WithEventCache(c EventCache) Option { return func(h *Handler) { h.cache = c } }
func WithLedger(l Ledger) Option         { return func(h *Handler) { h.ledger = l } }

func NewHandler(v Verifier, subs SubscriptionFetcher, rec Reconciler, logger zerolog.Logger, opts ...Option) *Handler {
	h := &Handler{
		verifier:   v,
		subs:       subs,
		reconciler: rec,
		logger:     logger.With().Str("component", "stripe_webhook").Logger(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// errBadPayload marks event bodies that can never be processed; Stripe gets a 400.
var errBadPayload = errors.New("malformed event payload")

// StripeWebhook is the POST /webhook endpoint.
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		metrics.IncWebhookEvent("unknown", "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": "No signature provided"})
		return
	}

	event, err := h.verifier.Verify(payload, signature)
	if err != nil {
		metrics.IncWebhookEvent("unknown", "invalid")
		h.logger.Warn().Err(err).Msg("stripe signature verification failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
		return
	}

	ctx := c.Request.Context()
	eventType := string(event.Type)
	log := h.logger.With().Str("event_id", event.ID).Str("event_type", eventType).Logger()

	if h.cache != nil {
		seen, err := h.cache.Seen(ctx, event.ID)
		if err != nil {
			log.Warn().Err(err).Msg("event cache lookup failed, processing anyway")
		} else if seen {
			metrics.IncWebhookEvent(eventType, "duplicate")
			c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
			return
		}
	}

	if h.ledger != nil {
		if err := h.ledger.Received(ctx, event.ID, eventType, payload); err != nil {
			log.Warn().Err(err).Msg("failed to record webhook event")
		}
	}

	start := time.Now()
	outcome, err := h.dispatch(ctx, event)
	metrics.ObserveWebhookDuration(eventType, time.Since(start))

	if h.ledger != nil {
		if lerr := h.ledger.Finished(ctx, event.ID, outcome, err); lerr != nil {
			log.Warn().Err(lerr).Msg("failed to finish webhook event")
		}
	}

	switch {
	case errors.Is(err, errBadPayload):
		metrics.IncWebhookEvent(eventType, "invalid")
		log.Warn().Err(err).Msg("unparseable stripe event")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		metrics.IncWebhookEvent(eventType, "error")
		metrics.IncReconcile("error")
		log.Error().Err(err).Msg("stripe event processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
		return
	}

	if h.cache != nil {
		if err := h.cache.MarkProcessed(ctx, event.ID); err != nil {
			log.Warn().Err(err).Msg("failed to mark event processed")
		}
	}

	if outcome == outcomeIgnored {
		metrics.IncWebhookEvent(eventType, "ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	metrics.IncWebhookEvent(eventType, "ok")
	metrics.IncReconcile(outcome)
	c.JSON(http.StatusOK, gin.H{"status": "received", "outcome": outcome})
}

const outcomeIgnored = "ignored"

func (h *Handler) dispatch(ctx context.Context, event stripe.Event) (string, error) {
	if event.Data == nil {
		return "", errBadPayload
	}
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return "", fmt.Errorf("%w: checkout session: %v", errBadPayload, err)
		}
		return h.handleCheckoutSessionCompleted(ctx, event, &session)

	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return "", fmt.Errorf("%w: invoice: %v", errBadPayload, err)
		}
		return h.handleInvoicePaymentSucceeded(ctx, event, &inv)

	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return "", fmt.Errorf("%w: subscription: %v", errBadPayload, err)
		}
		return h.handleSubscriptionChanged(ctx, event, &sub)

	default:
		// Acknowledge unknown events to avoid retries
		return outcomeIgnored, nil
	}
}

func (h *Handler) reconcile(ctx context.Context, event stripe.Event, snap reconciler.Snapshot) (string, error) {
	snap.EventID = event.ID
	if event.Created > 0 {
		snap.EventCreatedAt = time.Unix(event.Created, 0).UTC()
	}
	res, err := h.reconciler.Reconcile(ctx, snap)
	if err != nil {
		return "", err
	}
	return string(res.Outcome), nil
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}

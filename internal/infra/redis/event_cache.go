package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stripe retries a failed delivery for up to three days.
const DefaultEventTTL = 72 * time.Hour

// EventCache remembers which webhook event ids were already processed.
type EventCache struct {
	cli    redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewClient parses a redis:// URL and pings the server.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return cli, nil
}

func NewEventCache(cli redis.UniversalClient, ttl time.Duration) *EventCache {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &EventCache{cli: cli, ttl: ttl, prefix: "stripe:event:"}
}

func (c *EventCache) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := c.cli.Exists(ctx, c.prefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists %s: %w", eventID, err)
	}
	return n > 0, nil
}

func (c *EventCache) MarkProcessed(ctx context.Context, eventID string) error {
	if err := c.cli.Set(ctx, c.prefix+eventID, time.Now().Unix(), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: mark %s: %w", eventID, err)
	}
	return nil
}

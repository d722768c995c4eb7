package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const countKeyPrefix = "events:count:"

// Counters keeps per-event-type volume counters in Redis. Counts are
// best-effort observability data, kept for 48 hours.
type Counters struct {
	client *redis.Client
}

// NewCounters wraps an existing Redis connection.
func NewCounters(client *redis.Client) *Counters {
	return &Counters{client: client}
}

// Record increments the counter for eventType.
func (c *Counters) Record(ctx context.Context, eventType string) error {
	key := countKeyPrefix + eventType

	pipe := c.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 48*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record event count: %w", err)
	}
	return nil
}

// Count returns the current counter for eventType.
func (c *Counters) Count(ctx context.Context, eventType string) (int64, error) {
	n, err := c.client.Get(ctx, countKeyPrefix+eventType).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get event count: %w", err)
	}
	return n, nil
}

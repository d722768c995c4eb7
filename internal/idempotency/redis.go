package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hookrelay-systems/hookrelay/internal/models"
)

const eventKeyPrefix = "event:"

// RedisStore implements Store on a single Redis SET NX with expiry. The
// retention window bounds duplicate detection: once the key expires, a
// redelivery of the same identifier is processed as new.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore connects to Redis and verifies the connection before
// returning.
func NewRedisStore(redisURL string, retention time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client, retention: retention}, nil
}

// NewRedisStoreFromClient wraps an existing connection. Used by tests and
// when the ledger shares the same Redis.
func NewRedisStoreFromClient(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func (s *RedisStore) MarkProcessed(ctx context.Context, rec models.ProcessingRecord) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal processing record: %w", err)
	}

	created, err := s.client.SetNX(ctx, eventKeyPrefix+rec.EventID, data, s.retention).Result()
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}

	return created, nil
}

func (s *RedisStore) Release(ctx context.Context, eventID string) error {
	if err := s.client.Del(ctx, eventKeyPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}

// Get returns the stored processing record for eventID, or nil when none
// exists. Used by the ops endpoints, not the hot path.
func (s *RedisStore) Get(ctx context.Context, eventID string) (*models.ProcessingRecord, error) {
	data, err := s.client.Get(ctx, eventKeyPrefix+eventID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}

	var rec models.ProcessingRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal processing record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

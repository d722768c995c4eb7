// Package ledger is the durable retry path: a time-ordered Redis sorted set
// of envelopes whose processing did not complete. Appends are fire-and-forget
// on the response path; only the retry sweeper mutates or removes entries.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hookrelay-systems/hookrelay/internal/metrics"
	"github.com/hookrelay-systems/hookrelay/internal/models"
)

const failedSetKey = "events:failed"

// Entry is one ledger member: the decoded failure record plus the raw
// member bytes and score that identify it inside the sorted set.
type Entry struct {
	Record models.FailureRecord

	member string
	score  float64
}

// Ledger stores failure records ordered by failure timestamp.
type Ledger struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(redisURL string) (*Ledger, error) {
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

	return &Ledger{client: client}, nil
}

// NewFromClient wraps an existing connection.
func NewFromClient(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

// Append records a failed envelope for later retry. Storage errors are
// logged and swallowed: losing a failure record is preferable to blocking
// the response path.
func (l *Ledger) Append(ctx context.Context, env models.Envelope, procErr error) {
	rec := models.FailureRecord{
		Envelope:   env,
		Error:      procErr.Error(),
		FailedAt:   time.Now().UTC(),
		RetryCount: 0,
	}

	if err := l.add(ctx, rec, float64(rec.FailedAt.UnixNano())); err != nil {
		slog.Error("Failed to append failure record",
			slog.String("event_id", env.EventID),
			slog.String("error", err.Error()),
		)
		return
	}

	metrics.LedgerAppends.Inc()
}

// Drain returns all current failure records, oldest first.
func (l *Ledger) Drain(ctx context.Context) ([]Entry, error) {
	members, err := l.client.ZRangeWithScores(ctx, failedSetKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("drain failure ledger: %w", err)
	}

	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		raw, ok := m.Member.(string)
		if !ok {
			continue
		}

		var rec models.FailureRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			// Malformed members are unrecoverable; drop them so they do
			// not wedge every future sweep.
			slog.Warn("Dropping malformed failure record", slog.String("error", err.Error()))
			l.client.ZRem(ctx, failedSetKey, raw)
			continue
		}

		entries = append(entries, Entry{Record: rec, member: raw, score: m.Score})
	}

	return entries, nil
}

// Remove deletes entry from the ledger by member identity.
func (l *Ledger) Remove(ctx context.Context, entry Entry) error {
	if err := l.client.ZRem(ctx, failedSetKey, entry.member).Err(); err != nil {
		return fmt.Errorf("remove failure record: %w", err)
	}
	return nil
}

// Bump replaces entry with an incremented retry count, keeping the original
// failure-time score so the entry holds its position in the drain order.
func (l *Ledger) Bump(ctx context.Context, entry Entry) error {
	updated := entry.Record
	updated.RetryCount++

	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("marshal failure record: %w", err)
	}

	pipe := l.client.TxPipeline()
	pipe.ZRem(ctx, failedSetKey, entry.member)
	pipe.ZAdd(ctx, failedSetKey, redis.Z{Score: entry.score, Member: string(data)})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("bump failure record: %w", err)
	}
	return nil
}

// Len returns the number of pending failure records.
func (l *Ledger) Len(ctx context.Context) (int64, error) {
	n, err := l.client.ZCard(ctx, failedSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count failure records: %w", err)
	}
	return n, nil
}

func (l *Ledger) add(ctx context.Context, rec models.FailureRecord, score float64) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal failure record: %w", err)
	}

	if err := l.client.ZAdd(ctx, failedSetKey, redis.Z{Score: score, Member: string(data)}).Err(); err != nil {
		return fmt.Errorf("zadd failure record: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (l *Ledger) Close() error {
	return l.client.Close()
}

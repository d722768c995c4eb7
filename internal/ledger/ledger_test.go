package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookrelay-systems/hookrelay/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func envelope(id string) models.Envelope {
	return models.Envelope{
		EventID:   id,
		Type:      "order.created",
		CreatedAt: time.Now().UTC(),
		Data: models.EnvelopeData{
			Object: models.ObjectRef{ID: "o-" + id},
		},
	}
}

func TestLedger_AppendAndDrain_OldestFirst(t *testing.T) {
	_, client := setupTestRedis(t)
	defer client.Close()

	l := NewFromClient(client)
	ctx := context.Background()

	// Append in shuffled wall-clock order by spacing the appends.
	l.Append(ctx, envelope("evt-a"), errors.New("analytics timeout"))
	time.Sleep(2 * time.Millisecond)
	l.Append(ctx, envelope("evt-b"), errors.New("connection reset"))
	time.Sleep(2 * time.Millisecond)
	l.Append(ctx, envelope("evt-c"), errors.New("unknown"))

	entries, err := l.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "evt-a", entries[0].Record.Envelope.EventID)
	assert.Equal(t, "evt-b", entries[1].Record.Envelope.EventID)
	assert.Equal(t, "evt-c", entries[2].Record.Envelope.EventID)
	assert.Equal(t, "analytics timeout", entries[0].Record.Error)
	assert.Equal(t, 0, entries[0].Record.RetryCount)
}

func TestLedger_Remove(t *testing.T) {
	_, client := setupTestRedis(t)
	defer client.Close()

	l := NewFromClient(client)
	ctx := context.Background()

	l.Append(ctx, envelope("evt-1"), errors.New("timeout"))
	l.Append(ctx, envelope("evt-2"), errors.New("timeout"))

	entries, err := l.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.NoError(t, l.Remove(ctx, entries[0]))

	remaining, err := l.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "evt-2", remaining[0].Record.Envelope.EventID)
}

func TestLedger_Bump_IncrementsRetryKeepsOrder(t *testing.T) {
	_, client := setupTestRedis(t)
	defer client.Close()

	l := NewFromClient(client)
	ctx := context.Background()

	l.Append(ctx, envelope("evt-old"), errors.New("timeout"))
	time.Sleep(2 * time.Millisecond)
	l.Append(ctx, envelope("evt-new"), errors.New("timeout"))

	entries, err := l.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Bump the older entry twice; it must keep its drain position.
	require.NoError(t, l.Bump(ctx, entries[0]))

	entries, err = l.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "evt-old", entries[0].Record.Envelope.EventID)
	assert.Equal(t, 1, entries[0].Record.RetryCount)

	require.NoError(t, l.Bump(ctx, entries[0]))

	entries, err = l.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, entries[0].Record.RetryCount)
	assert.Equal(t, "evt-new", entries[1].Record.Envelope.EventID)
}

func TestLedger_Append_SwallowsStorageErrors(t *testing.T) {
	mr, client := setupTestRedis(t)
	l := NewFromClient(client)
	ctx := context.Background()

	// A dead backend must not surface an error to the caller.
	mr.Close()
	l.Append(ctx, envelope("evt-x"), errors.New("timeout"))
}

func TestLedger_Len(t *testing.T) {
	_, client := setupTestRedis(t)
	defer client.Close()

	l := NewFromClient(client)
	ctx := context.Background()

	n, err := l.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	l.Append(ctx, envelope("evt-1"), errors.New("timeout"))
	l.Append(ctx, envelope("evt-2"), errors.New("timeout"))

	n, err = l.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestLedger_Drain_DropsMalformedMembers(t *testing.T) {
	_, client := setupTestRedis(t)
	defer client.Close()

	l := NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, client.ZAdd(ctx, failedSetKey, redis.Z{
		Score:  1,
		Member: "not-json",
	}).Err())
	l.Append(ctx, envelope("evt-ok"), errors.New("timeout"))

	entries, err := l.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "evt-ok", entries[0].Record.Envelope.EventID)

	// Malformed member was evicted, not retained for the next sweep.
	n, err := client.ZCard(ctx, failedSetKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

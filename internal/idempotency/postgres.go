package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hookrelay-systems/hookrelay/internal/models"
)

// PostgresStore implements Store on a processed_events table. The atomic
// create-if-absent is a single INSERT ... ON CONFLICT statement; an expired
// prior record is overwritten in the same statement, which keeps the
// retention semantics identical to the Redis backend without a reaper.
type PostgresStore struct {
	pool      *pgxpool.Pool
	retention time.Duration
}

// NewPostgresStore opens a connection pool and verifies connectivity.
// Schema setup runs through golang-migrate at service startup, not here.
func NewPostgresStore(ctx context.Context, connString string, retention time.Duration) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, retention: retention}, nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, rec models.ProcessingRecord) (bool, error) {
	// The conditional DO UPDATE claims an identifier whose previous record
	// has aged past retention; a live record leaves zero rows affected.
	query := `
		INSERT INTO processed_events (event_id, event_type, merchant_id, location_id, processed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO UPDATE
		SET event_type = EXCLUDED.event_type,
		    merchant_id = EXCLUDED.merchant_id,
		    location_id = EXCLUDED.location_id,
		    processed_at = EXCLUDED.processed_at
		WHERE processed_events.processed_at < $5 - make_interval(secs => $6)
	`

	tag, err := s.pool.Exec(ctx, query,
		rec.EventID, rec.EventType, rec.MerchantID, rec.LocationID,
		rec.ProcessedAt, s.retention.Seconds(),
	)
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Release(ctx context.Context, eventID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM processed_events WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}

// Get mirrors the Redis backend's expiry semantics: a record older than
// retention is reported as absent even though the row still exists.
func (s *PostgresStore) Get(ctx context.Context, eventID string) (*models.ProcessingRecord, error) {
	query := `
		SELECT event_id, event_type, merchant_id, location_id, processed_at
		FROM processed_events
		WHERE event_id = $1 AND processed_at >= now() - make_interval(secs => $2)
	`

	var rec models.ProcessingRecord
	err := s.pool.QueryRow(ctx, query, eventID, s.retention.Seconds()).Scan(
		&rec.EventID, &rec.EventType, &rec.MerchantID, &rec.LocationID, &rec.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return &rec, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

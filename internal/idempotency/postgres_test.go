package idempotency

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hookrelay-systems/hookrelay/internal/models"
)

func pgRecord(id string, processedAt time.Time) models.ProcessingRecord {
	return models.ProcessingRecord{
		EventID:     id,
		EventType:   "order.created",
		MerchantID:  "m-1",
		LocationID:  "loc-1",
		ProcessedAt: processedAt,
	}
}

// setupTestPostgres creates a PostgreSQL testcontainer, applies the schema
// migration, and returns a store with the given retention window.
func setupTestPostgres(t *testing.T, retention time.Duration) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("hookrelay_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	if err := applyMigration(connStr); err != nil {
		t.Fatalf("Failed to run migration: %v", err)
	}

	store, err := NewPostgresStore(ctx, connStr, retention)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func applyMigration(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "000001_create_processed_events.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

func TestPostgresStore_FirstWins(t *testing.T) {
	store := setupTestPostgres(t, 24*time.Hour)
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, pgRecord("evt-1", time.Now().UTC()))
	if err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if !first {
		t.Error("Expected the first claim to win")
	}

	second, err := store.MarkProcessed(ctx, pgRecord("evt-1", time.Now().UTC()))
	if err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if second {
		t.Error("Expected a live record to block the second claim")
	}
}

func TestPostgresStore_ConcurrentClaims(t *testing.T) {
	store := setupTestPostgres(t, 24*time.Hour)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	wins := make(chan bool, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := store.MarkProcessed(ctx, pgRecord("evt-race", time.Now().UTC()))
			if err != nil {
				t.Errorf("MarkProcessed failed: %v", err)
				return
			}
			wins <- first
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for first := range wins {
		if first {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("Expected exactly 1 winning claim, got %d", winners)
	}
}

func TestPostgresStore_ReclaimAfterRetention(t *testing.T) {
	store := setupTestPostgres(t, 24*time.Hour)
	ctx := context.Background()

	// An aged record no longer guards its identifier.
	aged := pgRecord("evt-old", time.Now().UTC().Add(-25*time.Hour))
	if first, err := store.MarkProcessed(ctx, aged); err != nil || !first {
		t.Fatalf("Seeding aged record: first=%v err=%v", first, err)
	}

	first, err := store.MarkProcessed(ctx, pgRecord("evt-old", time.Now().UTC()))
	if err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if !first {
		t.Error("Expected an aged record to be reclaimed")
	}

	// The reclaim refreshed processed_at: the identifier is guarded again.
	second, err := store.MarkProcessed(ctx, pgRecord("evt-old", time.Now().UTC()))
	if err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if second {
		t.Error("Expected the refreshed record to block further claims")
	}
}

func TestPostgresStore_Release(t *testing.T) {
	store := setupTestPostgres(t, 24*time.Hour)
	ctx := context.Background()

	if first, err := store.MarkProcessed(ctx, pgRecord("evt-1", time.Now().UTC())); err != nil || !first {
		t.Fatalf("Initial claim: first=%v err=%v", first, err)
	}

	if err := store.Release(ctx, "evt-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	first, err := store.MarkProcessed(ctx, pgRecord("evt-1", time.Now().UTC()))
	if err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if !first {
		t.Error("Expected a released identifier to be claimable again")
	}
}

func TestPostgresStore_Get(t *testing.T) {
	store := setupTestPostgres(t, 24*time.Hour)
	ctx := context.Background()

	rec, err := store.Get(ctx, "evt-absent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != nil {
		t.Errorf("Expected nil for an unclaimed identifier, got %+v", rec)
	}

	if first, err := store.MarkProcessed(ctx, pgRecord("evt-live", time.Now().UTC())); err != nil || !first {
		t.Fatalf("Claim: first=%v err=%v", first, err)
	}
	rec, err = store.Get(ctx, "evt-live")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec == nil || rec.EventID != "evt-live" || rec.EventType != "order.created" {
		t.Errorf("Unexpected record %+v", rec)
	}

	// A record past retention reads as absent, matching Redis TTL expiry.
	if first, err := store.MarkProcessed(ctx, pgRecord("evt-aged", time.Now().UTC().Add(-25*time.Hour))); err != nil || !first {
		t.Fatalf("Claim: first=%v err=%v", first, err)
	}
	rec, err = store.Get(ctx, "evt-aged")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec != nil {
		t.Errorf("Expected nil for an aged record, got %+v", rec)
	}
}

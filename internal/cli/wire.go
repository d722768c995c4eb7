package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"

	"github.com/hookrelay-systems/hookrelay/internal/config"
	"github.com/hookrelay-systems/hookrelay/internal/dispatch"
	"github.com/hookrelay-systems/hookrelay/internal/enrichment"
	"github.com/hookrelay-systems/hookrelay/internal/idempotency"
	"github.com/hookrelay-systems/hookrelay/internal/ledger"
	"github.com/hookrelay-systems/hookrelay/internal/processor"
	"github.com/hookrelay-systems/hookrelay/internal/sinks"
	"github.com/hookrelay-systems/hookrelay/internal/sweeper"
)

// pipeline holds the assembled processing components plus the connections
// they were built on, so commands can tear everything down in one call.
type pipeline struct {
	store    idempotency.Store
	counters *idempotency.Counters
	ledger   *ledger.Ledger
	proc     *processor.Processor
	sweep    *sweeper.Sweeper

	redisClient *redis.Client
}

func (p *pipeline) Close() {
	if p.store != nil {
		p.store.Close()
	}
	if p.redisClient != nil {
		p.redisClient.Close()
	}
}

// buildPipeline assembles the full ingestion pipeline from configuration.
// Shared by the serve and sweep commands.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	var store idempotency.Store
	switch cfg.Store.Backend {
	case "postgres":
		if err := runMigrations(cfg.Store.PostgresDSN); err != nil {
			client.Close()
			return nil, err
		}
		pg, err := idempotency.NewPostgresStore(ctx, cfg.Store.PostgresDSN, cfg.Store.Retention)
		if err != nil {
			client.Close()
			return nil, err
		}
		store = pg
	case "redis", "":
		store = idempotency.NewRedisStoreFromClient(client, cfg.Store.Retention)
	default:
		client.Close()
		return nil, fmt.Errorf("unknown store backend: %s (supported: redis, postgres)", cfg.Store.Backend)
	}

	counters := idempotency.NewCounters(client)
	l := ledger.NewFromClient(client)

	var enricher processor.Enricher
	if cfg.Enrichment.Enabled {
		gw, err := enrichment.New(cfg.Enrichment.BaseURL, cfg.Enrichment.AccessToken, cfg.Enrichment.Timeout)
		if err != nil {
			store.Close()
			client.Close()
			return nil, err
		}
		enricher = gw
	}

	targets, alert := buildSinks(cfg, logger)
	d := dispatch.New(targets, alert, cfg.Sinks.AlertThreshold, logger)
	proc := processor.New(store, counters, enricher, d, l, logger)
	sweep := sweeper.New(l, proc, cfg.Sweeper.Interval, cfg.Sweeper.MaxRetries, logger)

	return &pipeline{
		store:       store,
		counters:    counters,
		ledger:      l,
		proc:        proc,
		sweep:       sweep,
		redisClient: client,
	}, nil
}

// buildSinks translates sink configuration into distribution targets. The
// alert sink is returned separately: it fires conditionally on order value.
func buildSinks(cfg *config.Config, logger *slog.Logger) ([]sinks.Sink, sinks.Sink) {
	var targets []sinks.Sink

	if cfg.Sinks.Analytics.Enabled {
		targets = append(targets, sinks.NewHTTPSink("analytics", cfg.Sinks.Analytics.URL, cfg.Sinks.Analytics.Timeout))
	}
	if cfg.Sinks.CRM.Enabled {
		targets = append(targets, sinks.NewHTTPSink("crm", cfg.Sinks.CRM.URL, cfg.Sinks.CRM.Timeout))
	}
	if cfg.Sinks.Log.Enabled {
		targets = append(targets, sinks.NewLogSink(logger, cfg.Sinks.Log.Timeout))
	}

	var alert sinks.Sink
	if cfg.Sinks.Alert.Enabled {
		alert = sinks.NewHTTPSink("alert", cfg.Sinks.Alert.URL, cfg.Sinks.Alert.Timeout)
	}

	return targets, alert
}

func runMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

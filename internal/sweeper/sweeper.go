// Package sweeper periodically redrives the failure ledger through the
// ingestion pipeline.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hookrelay-systems/hookrelay/internal/ledger"
	"github.com/hookrelay-systems/hookrelay/internal/metrics"
	"github.com/hookrelay-systems/hookrelay/internal/models"
	"github.com/hookrelay-systems/hookrelay/internal/processor"
)

// Sweeper drains the failure ledger on a fixed interval or on demand. A
// sweep holds no lock against fresh deliveries of the same identifiers: the
// idempotency store's create-if-absent is what prevents double-processing
// when both race.
type Sweeper struct {
	ledger     *ledger.Ledger
	proc       *processor.Processor
	interval   time.Duration
	maxRetries int
	logger     *slog.Logger
	stop       chan struct{}
	stopped    chan struct{}
}

// New creates a retry sweeper.
func New(l *ledger.Ledger, proc *processor.Processor, interval time.Duration, maxRetries int, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		ledger:     l,
		proc:       proc,
		interval:   interval,
		maxRetries: maxRetries,
		logger:     logger,
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Start begins the sweep loop. Call in a goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	defer close(s.stopped)

	s.logger.Info("Retry sweeper started", slog.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Run(ctx)
		case <-s.stop:
			s.logger.Info("Retry sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Retry sweeper context cancelled")
			return
		}
	}
}

// Stop signals the loop to exit and waits for it to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.stopped
}

// Run drains the ledger once, oldest entries first, and reports the sweep
// summary. Entries that succeed are removed; entries that fail again have
// their retry count bumped, until the retry budget is spent and the entry
// is dropped for good.
func (s *Sweeper) Run(ctx context.Context) models.SweepSummary {
	runID := uuid.New().String()
	metrics.SweepRuns.Inc()

	entries, err := s.ledger.Drain(ctx)
	if err != nil {
		s.logger.Error("Failed to drain failure ledger",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		return models.SweepSummary{}
	}

	summary := models.SweepSummary{Total: len(entries)}
	if len(entries) == 0 {
		return summary
	}

	s.logger.Info("Sweep started",
		slog.String("run_id", runID),
		slog.Int("pending", len(entries)),
	)

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			s.logger.Warn("Sweep aborted", slog.String("run_id", runID))
			return summary
		default:
		}

		env := entry.Record.Envelope
		outcome := s.proc.Redrive(ctx, &env)

		switch outcome {
		case processor.OutcomeProcessed, processor.OutcomeDuplicate, processor.OutcomeDropped:
			// Duplicate means a fresh redelivery beat us to it; dropped
			// means the envelope can never succeed. Both are terminal.
			if err := s.ledger.Remove(ctx, entry); err != nil {
				s.logger.Error("Failed to remove retried record",
					slog.String("event_id", env.EventID),
					slog.String("error", err.Error()),
				)
			}
			summary.Succeeded++
			metrics.SweepRetries.WithLabelValues("succeeded").Inc()

		case processor.OutcomeFailed:
			summary.Failed++
			if entry.Record.RetryCount+1 >= s.maxRetries {
				s.giveUp(ctx, entry)
				continue
			}

			if err := s.ledger.Bump(ctx, entry); err != nil {
				s.logger.Error("Failed to update retried record",
					slog.String("event_id", env.EventID),
					slog.String("error", err.Error()),
				)
			}
			metrics.SweepRetries.WithLabelValues("failed").Inc()
		}
	}

	s.logger.Info("Sweep complete",
		slog.String("run_id", runID),
		slog.Int("total", summary.Total),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
	)

	return summary
}

// giveUp evicts an entry whose retry budget is exhausted.
func (s *Sweeper) giveUp(ctx context.Context, entry ledger.Entry) {
	if err := s.ledger.Remove(ctx, entry); err != nil {
		s.logger.Error("Failed to evict exhausted record",
			slog.String("event_id", entry.Record.Envelope.EventID),
			slog.String("error", err.Error()),
		)
	}

	metrics.SweepRetries.WithLabelValues("exhausted").Inc()
	s.logger.Warn("Retry budget exhausted, giving up",
		slog.String("event_id", entry.Record.Envelope.EventID),
		slog.Int("retries", s.maxRetries),
	)
}

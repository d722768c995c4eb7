// Package processor is the ingestion controller: the single pipeline every
// envelope passes through, whether it arrived fresh over HTTP or was
// redriven from the failure ledger by the retry sweeper.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hookrelay-systems/hookrelay/internal/dispatch"
	"github.com/hookrelay-systems/hookrelay/internal/idempotency"
	"github.com/hookrelay-systems/hookrelay/internal/ledger"
	"github.com/hookrelay-systems/hookrelay/internal/metrics"
	"github.com/hookrelay-systems/hookrelay/internal/models"
)

// Enricher resolves authoritative platform state for an envelope. The
// concrete implementation lives in internal/enrichment; the indirection
// keeps the pipeline testable without a live platform API.
type Enricher interface {
	Enrich(ctx context.Context, env *models.Envelope) *models.EnrichedContext
}

// Outcome is the terminal state of one processing attempt.
type Outcome int

const (
	// OutcomeProcessed means the envelope passed the idempotency check and
	// completed enrichment and distribution.
	OutcomeProcessed Outcome = iota
	// OutcomeDuplicate means another delivery already claimed the
	// identifier. This is success, not an error.
	OutcomeDuplicate
	// OutcomeDropped means a permanent validation failure.
	OutcomeDropped
	// OutcomeFailed means a retryable failure; the envelope is on the
	// failure ledger (best effort).
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeDropped:
		return "dropped"
	default:
		return "failed"
	}
}

// Processor wires the idempotency store, enrichment gateway, dispatcher and
// failure ledger into the ingestion pipeline. It holds no mutable state of
// its own: same-identifier races are ordered entirely by the store's atomic
// create-if-absent, which makes the processor horizontally replicable.
type Processor struct {
	store      idempotency.Store
	counters   *idempotency.Counters
	enricher   Enricher
	dispatcher *dispatch.Dispatcher
	ledger     *ledger.Ledger
	logger     *slog.Logger
}

// New builds a Processor. counters and enricher may be nil (volume counting
// and enrichment are both optional); store, dispatcher and failureLedger are
// required.
func New(store idempotency.Store, counters *idempotency.Counters, enricher Enricher, dispatcher *dispatch.Dispatcher, failureLedger *ledger.Ledger, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:      store,
		counters:   counters,
		enricher:   enricher,
		dispatcher: dispatcher,
		ledger:     failureLedger,
		logger:     logger,
	}
}

// Process runs the full pipeline for one envelope. It never returns an
// error and never panics past its own recover: every outcome is logged and
// reflected in the returned Outcome.
//
// A retryable failure releases the idempotency claim before the envelope is
// ledgered, so the retry (or a redelivery from the platform) starts from
// scratch and the create-if-absent remains the sole arbiter between a
// sweeper retry and a concurrent fresh delivery of the same identifier.
func (p *Processor) Process(ctx context.Context, env *models.Envelope) Outcome {
	return p.process(ctx, env, true)
}

// Redrive runs the identical pipeline for a ledgered envelope. The one
// difference from Process is that a renewed failure is not re-appended to
// the ledger; the sweeper owns that record's retry count and eviction.
func (p *Processor) Redrive(ctx context.Context, env *models.Envelope) Outcome {
	return p.process(ctx, env, false)
}

func (p *Processor) process(ctx context.Context, env *models.Envelope, ledgerOnFailure bool) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Pipeline panic recovered",
				slog.String("event_id", env.EventID),
				slog.Any("panic", r),
			)
			outcome = OutcomeFailed
		}
		metrics.EnvelopesTotal.WithLabelValues(outcome.String()).Inc()
	}()

	if err := env.Validate(); err != nil {
		p.logger.Warn("Envelope rejected",
			slog.String("event_id", env.EventID),
			slog.String("type", env.Type),
			slog.String("error", err.Error()),
		)
		return OutcomeDropped
	}

	first, err := p.store.MarkProcessed(ctx, models.ProcessingRecord{
		EventID:     env.EventID,
		EventType:   env.Type,
		MerchantID:  env.MerchantID,
		LocationID:  env.Data.Object.LocationID,
		ProcessedAt: time.Now().UTC(),
	})
	if err != nil {
		// The store is unreachable; without the atomic check we cannot
		// prove this identifier was never processed, so queue it.
		pe := classify(err)
		p.logger.Error("Idempotency check failed",
			slog.String("event_id", env.EventID),
			slog.String("kind", pe.Kind.String()),
			slog.String("error", err.Error()),
		)
		if ledgerOnFailure {
			p.ledger.Append(ctx, *env, pe)
		}
		return OutcomeFailed
	}
	if !first {
		metrics.DuplicatesTotal.Inc()
		p.logger.Info("Duplicate delivery ignored", slog.String("event_id", env.EventID))
		return OutcomeDuplicate
	}

	if p.counters != nil {
		if err := p.counters.Record(ctx, env.Type); err != nil {
			p.logger.Warn("Volume counter update failed", slog.String("error", err.Error()))
		}
	}

	if err := p.runSafe(ctx, env); err != nil {
		pe := classify(err)
		if !pe.Retryable() {
			p.logger.Warn("Envelope dropped",
				slog.String("event_id", env.EventID),
				slog.String("error", pe.Error()),
			)
			return OutcomeDropped
		}

		// Surrender the claim so the retried envelope is processed from
		// scratch; the ledger write is fire-and-forget.
		if relErr := p.store.Release(ctx, env.EventID); relErr != nil {
			p.logger.Error("Failed to release idempotency claim",
				slog.String("event_id", env.EventID),
				slog.String("error", relErr.Error()),
			)
		}
		if ledgerOnFailure {
			p.ledger.Append(ctx, *env, pe)
		}

		p.logger.Error("Envelope processing failed",
			slog.String("event_id", env.EventID),
			slog.String("kind", pe.Kind.String()),
			slog.String("error", pe.Error()),
		)
		return OutcomeFailed
	}

	return OutcomeProcessed
}

// runSafe shields the pipeline from panics in enrichment or distribution,
// converting them into classifiable errors.
func (p *Processor) runSafe(ctx context.Context, env *models.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return p.run(ctx, env)
}

// run executes enrichment and distribution for an envelope that has won the
// idempotency check. Both stages absorb their own partial failures; only an
// error escaping this function reaches the classifier.
func (p *Processor) run(ctx context.Context, env *models.Envelope) error {
	enriched := &models.EnrichedContext{}
	if p.enricher != nil {
		// Enrichment is bounded inside the gateway and failure yields an
		// empty context; it can slow distribution down but never stop it.
		enriched = p.enricher.Enrich(ctx, env)
	}

	summary := p.dispatcher.Distribute(ctx, env, enriched)

	// A cancelled parent context means the sinks were cut off wholesale,
	// not that they individually failed; treat the attempt as incomplete.
	if err := ctx.Err(); err != nil {
		return err
	}

	if summary.Failed > 0 {
		// Partial fan-out failure is deliberately not ledgered: each sink
		// failure was already logged and counted by the dispatcher, and the
		// event as a whole is considered delivered. A full sink outage is
		// therefore invisible to the retry path.
		p.logger.Warn("Distribution completed with failures",
			slog.String("event_id", env.EventID),
			slog.Int("failed", summary.Failed),
		)
	}

	return nil
}

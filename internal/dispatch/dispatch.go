// Package dispatch fans a processed envelope out to every enabled sink.
//
// All sinks run concurrently, each under its own deadline, joined with a
// wait-for-all regardless of individual outcome. One sink failing or timing
// out never aborts or delays the others, so the whole fan-out completes in
// the time of the slowest enabled sink, not the sum. Distribution never
// returns an error: sink failures are logged and counted here, and "some
// sinks failed" is an acceptable final outcome for the envelope.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hookrelay-systems/hookrelay/internal/metrics"
	"github.com/hookrelay-systems/hookrelay/internal/models"
	"github.com/hookrelay-systems/hookrelay/internal/sinks"
)

// Dispatcher owns the static set of distribution targets.
type Dispatcher struct {
	targets        []sinks.Sink
	alert          sinks.Sink
	alertThreshold float64
	logger         *slog.Logger
}

// New builds a dispatcher. alert may be nil when the alert sink is
// disabled; it is held apart from the unconditional targets because it only
// fires above the configured value threshold.
func New(targets []sinks.Sink, alert sinks.Sink, alertThreshold float64, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		targets:        targets,
		alert:          alert,
		alertThreshold: alertThreshold,
		logger:         logger,
	}
}

// Distribute delivers env to every enabled sink concurrently and reports a
// completion summary once all of them have either succeeded or exhausted
// their own timeout.
func (d *Dispatcher) Distribute(ctx context.Context, env *models.Envelope, enriched *models.EnrichedContext) models.DistributionSummary {
	type outcome struct {
		sink string
		err  error
	}

	active := make([]sinks.Sink, 0, len(d.targets)+1)
	active = append(active, d.targets...)

	summary := models.DistributionSummary{}

	if d.alert != nil {
		if d.shouldAlert(env) {
			active = append(active, d.alert)
		} else {
			summary.Skipped++
		}
	}

	if len(active) == 0 {
		return summary
	}

	results := make(chan outcome, len(active))
	var wg sync.WaitGroup

	for _, sink := range active {
		wg.Add(1)
		go func(s sinks.Sink) {
			defer wg.Done()

			sinkCtx, cancel := context.WithTimeout(ctx, s.Timeout())
			defer cancel()

			start := time.Now()
			err := s.Deliver(sinkCtx, env, enriched)
			metrics.SinkDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())

			results <- outcome{sink: s.Name(), err: err}
		}(sink)
	}

	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			summary.Failed++
			summary.FailedSinks = append(summary.FailedSinks, r.sink)
			metrics.SinkDeliveries.WithLabelValues(r.sink, "error").Inc()
			d.logger.Warn("Sink delivery failed",
				slog.String("event_id", env.EventID),
				slog.String("sink", r.sink),
				slog.String("error", r.err.Error()),
			)
		} else {
			summary.Succeeded++
			metrics.SinkDeliveries.WithLabelValues(r.sink, "ok").Inc()
		}
	}

	d.logger.Info("Distribution complete",
		slog.String("event_id", env.EventID),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped),
	)

	return summary
}

// shouldAlert gates the alert sink on the order or payment value crossing
// the configured threshold.
func (d *Dispatcher) shouldAlert(env *models.Envelope) bool {
	value, ok := env.MonetaryValue()
	return ok && value > d.alertThreshold
}

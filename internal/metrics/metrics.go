package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	EnvelopesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookrelay_envelopes_total",
			Help: "Total webhook envelopes received, by outcome",
		},
		[]string{"outcome"},
	)

	DuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookrelay_duplicates_total",
			Help: "Total envelopes suppressed as duplicates",
		},
	)

	SignatureFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookrelay_signature_failures_total",
			Help: "Total deliveries rejected for an invalid signature",
		},
	)

	// Enrichment metrics
	EnrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hookrelay_enrichment_duration_seconds",
			Help:    "Duration of platform API enrichment calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	EnrichmentFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookrelay_enrichment_failures_total",
			Help: "Total enrichment attempts that returned no data",
		},
	)

	// Distribution metrics
	SinkDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookrelay_sink_deliveries_total",
			Help: "Total sink delivery attempts, by sink and status",
		},
		[]string{"sink", "status"},
	)

	SinkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hookrelay_sink_duration_seconds",
			Help:    "Duration of sink deliveries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)

	// Retry metrics
	LedgerAppends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookrelay_ledger_appends_total",
			Help: "Total failure records appended to the retry ledger",
		},
	)

	SweepRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hookrelay_sweep_runs_total",
			Help: "Total retry sweeper runs",
		},
	)

	SweepRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookrelay_sweep_retries_total",
			Help: "Total ledger entries retried, by outcome",
		},
		[]string{"outcome"},
	)
)

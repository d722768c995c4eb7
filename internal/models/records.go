package models

import (
	"errors"
	"time"
)

var (
	ErrMissingEventID   = errors.New("envelope missing event_id")
	ErrMissingEventType = errors.New("envelope missing type")
)

// ProcessingRecord is persisted when an Envelope is first accepted. It is
// written exactly once per event identifier and expires after the configured
// retention window.
type ProcessingRecord struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	MerchantID  string    `json:"merchant_id,omitempty"`
	LocationID  string    `json:"location_id,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// FailureRecord captures an Envelope whose processing did not complete,
// queued for a later sweep. Retries always re-run the full pipeline on the
// embedded Envelope.
type FailureRecord struct {
	Envelope   Envelope  `json:"envelope"`
	Error      string    `json:"error"`
	FailedAt   time.Time `json:"failed_at"`
	RetryCount int       `json:"retry_count"`
}

// DistributionSummary reports fan-out completion per sink. A partially
// failed distribution is an acceptable outcome; individual sink failures
// are already logged and counted by the dispatcher.
type DistributionSummary struct {
	Succeeded   int      `json:"succeeded"`
	Failed      int      `json:"failed"`
	Skipped     int      `json:"skipped"`
	FailedSinks []string `json:"failed_sinks,omitempty"`
}

// SweepSummary reports one retry-sweeper run.
type SweepSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

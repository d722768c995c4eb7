// Package idempotency enforces at-most-once acceptance per envelope
// identifier. The store's create-if-absent primitive is the single atomic
// step that orders concurrent deliveries of the same identifier: exactly one
// caller observes first=true and proceeds to enrichment and distribution.
package idempotency

import (
	"context"

	"github.com/hookrelay-systems/hookrelay/internal/models"
)

// Store is a durable map from event identifier to processing record with
// a finite retention window.
type Store interface {
	// MarkProcessed atomically records rec unless a live record for the same
	// event identifier already exists. It returns true when rec was written,
	// false when the identifier was already claimed. Checking and claiming
	// are one operation; there is no window between them.
	MarkProcessed(ctx context.Context, rec models.ProcessingRecord) (bool, error)

	// Release deletes the record for eventID, surrendering the claim so the
	// envelope can be processed again from scratch.
	Release(ctx context.Context, eventID string) error

	// Get returns the live processing record for eventID, or nil when the
	// identifier is unclaimed or its record has aged past retention.
	Get(ctx context.Context, eventID string) (*models.ProcessingRecord, error)

	Close() error
}

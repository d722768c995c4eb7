package processor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/hookrelay-systems/hookrelay/internal/models"
)

// Kind is the closed set of pipeline error classes. Classification happens
// exactly once, in classify, after all local handling inside enrichment and
// distribution has already absorbed its own failures.
type Kind int

const (
	// KindValidation marks a malformed envelope. Permanent: logged and
	// dropped, never retried.
	KindValidation Kind = iota
	// KindTransient marks timeouts, connection resets and upstream 5xx.
	// Retryable through the failure ledger.
	KindTransient
	// KindUnknown marks everything else. Treated like transient so an
	// unclassified outage still reaches the retry path.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// PipelineError carries the classified kind alongside the cause.
type PipelineError struct {
	Kind Kind
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Retryable reports whether the error should be written to the failure
// ledger. Validation errors are permanent; everything else converges on
// the retry path.
func (e *PipelineError) Retryable() bool {
	return e.Kind != KindValidation
}

// classify assigns an error to its kind. This is the single classification
// site for the whole pipeline.
func classify(err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}

	switch {
	case errors.Is(err, models.ErrMissingEventID), errors.Is(err, models.ErrMissingEventType):
		return &PipelineError{Kind: KindValidation, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &PipelineError{Kind: KindTransient, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &PipelineError{Kind: KindTransient, Err: err}
	}

	return &PipelineError{Kind: KindUnknown, Err: err}
}

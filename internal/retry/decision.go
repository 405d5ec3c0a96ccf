package retry

import (
	"context"

	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// Decision is what the retry loop does with the outcome of one attempt.
type Decision int

const (
	// Done means the attempt succeeded.
	Done Decision = iota
	// Retry means the failure was transient and attempts remain.
	Retry
	// FailFast means stop and surface the error as-is: a domain answer or a
	// caller that gave up.
	FailFast
	// Fallback means this backend is exhausted; the next backend may be tried.
	Fallback
)

// String returns a human-readable representation of the decision.
func (d Decision) String() string {
	switch d {
	case Done:
		return "done"
	case Retry:
		return "retry"
	case FailFast:
		return "fail_fast"
	case Fallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Decide classifies the outcome of attempt (1-based) out of maxAttempts.
//
//	err                        decision
//	nil                        Done
//	caller ctx done            FailFast
//	domain error               FailFast
//	circuit open               Fallback
//	transient, attempts left   Retry
//	transient, none left       Fallback
//	unclassified               Fallback
func Decide(ctx context.Context, err error, attempt, maxAttempts int) Decision {
	if err == nil {
		return Done
	}
	if ctx.Err() != nil {
		return FailFast
	}
	if types.IsDomain(err) {
		return FailFast
	}
	if types.CodeOf(err) == types.CIRCUIT_OPEN {
		return Fallback
	}
	if types.IsTransient(err) {
		if attempt < maxAttempts {
			return Retry
		}
		return Fallback
	}
	return Fallback
}

package reconcile

// Outcome classifies what a reconciler did with an event payload.
type Outcome string

const (
	// OutcomeApplied means the canonical record was created or updated.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkippedMissingReference means a required parent entity could
	// not be resolved; the event is acknowledged without mutations.
	OutcomeSkippedMissingReference Outcome = "skipped_missing_reference"
	// OutcomeIgnored means the payload is out of scope for the reconciler
	// (e.g. a non-recurring price).
	OutcomeIgnored Outcome = "ignored"
	// OutcomeFailed means a storage write failed; the error propagates so
	// the delivery is retried.
	OutcomeFailed Outcome = "failed"
)

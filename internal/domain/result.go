package domain

// MutationOutcome tags how a facade mutation was resolved.
type MutationOutcome int

const (
	// OutcomeApplied means the backend confirmed the mutation.
	OutcomeApplied MutationOutcome = iota

	// OutcomeQueued means the backend was unreachable; the mutation was
	// applied locally and appended to the change log for later sync.
	OutcomeQueued

	// OutcomeRejected means the backend refused the mutation; local state
	// was rolled back.
	OutcomeRejected
)

// String returns a human-readable representation of the outcome
func (o MutationOutcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeQueued:
		return "queued"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// MutationResult is returned from every facade mutation so callers can
// apply UI updates by matching on the outcome instead of mutating shared
// state from multiple code paths.
type MutationResult struct {
	Outcome MutationOutcome

	// EntityID is the identifier of the affected entity. For creates this
	// is the authoritative backend ID when applied, or the locally
	// assigned ID when queued.
	EntityID string
}

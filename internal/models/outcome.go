package models

// OutcomeKind discriminates the per-category processing result.
type OutcomeKind int

const (
	// OutcomeSuccess carries the identifier of an uploaded artifact.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeNotFound means the archive is fine but the category does not
	// exist for this participant. Not an error.
	OutcomeNotFound
	// OutcomeError means extraction, cleaning, or upload failed.
	OutcomeError
)

// CategoryOutcome is the tagged result of processing one data category.
type CategoryOutcome struct {
	Kind    OutcomeKind
	SID     string
	Message string
}

// Success wraps an assigned artifact identifier.
func Success(sid string) CategoryOutcome {
	return CategoryOutcome{Kind: OutcomeSuccess, SID: sid}
}

// NotFound marks a category absent from the archive.
func NotFound() CategoryOutcome {
	return CategoryOutcome{Kind: OutcomeNotFound}
}

// CategoryError marks a category-scoped failure with its cause.
func CategoryError(msg string) CategoryOutcome {
	return CategoryOutcome{Kind: OutcomeError, Message: msg}
}

// Sentinel returns the value persisted into the SID column for this outcome.
func (o CategoryOutcome) Sentinel() string {
	switch o.Kind {
	case OutcomeSuccess:
		return o.SID
	case OutcomeNotFound:
		return SIDNotFound
	default:
		return SIDError
	}
}

// Failed reports whether the outcome is an error (not-found is not a failure).
func (o CategoryOutcome) Failed() bool {
	return o.Kind == OutcomeError
}

// OK reports whether the outcome carries an artifact identifier.
func (o CategoryOutcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

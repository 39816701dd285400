package binder

import "errors"

var (
	// ErrAmbiguousBinding is returned when more than one implementation
	// qualifies. The pass produces no bindings.
	ErrAmbiguousBinding = errors.New("ambiguous binding")

	// ErrNoCandidates is returned when no wrapper could be paired with an
	// implementation. Callers usually treat it as informational.
	ErrNoCandidates = errors.New("no binding candidates")
)

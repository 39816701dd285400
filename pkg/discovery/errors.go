package discovery

import "errors"

var (
	// ErrNoDefaultConstructor is returned when a candidate has no
	// zero-argument constructor.
	ErrNoDefaultConstructor = errors.New("no zero-argument constructor")

	// ErrInstantiation is returned when a constructor fails or panics.
	ErrInstantiation = errors.New("instantiation failed")

	// ErrEmptyScope is returned when discovery is asked to search an empty scope.
	ErrEmptyScope = errors.New("discovery scope is empty")

	// ErrInvalidCapability is returned when a capability is not an interface type.
	ErrInvalidCapability = errors.New("capability must be an interface type")
)

package config

import "errors"

var (
	// ErrMissingMandatoryConfig is returned when a required key has no value.
	ErrMissingMandatoryConfig = errors.New("missing mandatory configuration")

	// ErrNotStarted is returned by operations that need a started Store.
	ErrNotStarted = errors.New("configuration store not started")
)

package app

import "errors"

var (
	// ErrIllegalState is returned for a call made outside the lifecycle
	// phase that allows it, such as registering a server once running.
	ErrIllegalState = errors.New("illegal state")

	// ErrInvalidApplication is returned by New for an application without
	// a name, scope or catalog.
	ErrInvalidApplication = errors.New("invalid application")

	// ErrDuplicateServer is returned when two RPC servers would read the
	// same "<name>.thrift" keys.
	ErrDuplicateServer = errors.New("duplicate server name")
)

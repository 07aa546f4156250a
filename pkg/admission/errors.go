package admission

import "errors"

// Package-level error definitions for admission control operations.
var (
	ErrInvalidConfig   = errors.New("invalid admission config")
	ErrUnknownLimit    = errors.New("unknown limit name")
	ErrTooManyInFlight = errors.New("too many in-flight operations")
)

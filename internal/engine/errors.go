package engine

import "errors"

// Engine-related errors.
var (
	// ErrInvalidAddress indicates the destination was not an IP
	// literal or did not match the requested IP version
	ErrInvalidAddress = errors.New("destination must be an IP literal of the requested version")

	// ErrInvalidParams indicates probe parameters outside their valid
	// ranges
	ErrInvalidParams = errors.New("probe parameters out of range")

	// ErrNoSourceAddress indicates no usable local address could be
	// discovered for a probe that needs one
	ErrNoSourceAddress = errors.New("no local source address available")
)

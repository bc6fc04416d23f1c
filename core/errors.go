package core

import "errors"

var (
	// ErrInvalidInput marks malformed coordinates, resolutions and
	// prediction sequences. It is never silently corrected.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnresolvedReference marks a destination code that the registry does
	// not know. Public operations turn it into an empty result.
	ErrUnresolvedReference = errors.New("unresolved reference")
	// ErrDegenerateGeometry marks coincident or antipodal endpoints whose
	// great circle is undefined. Public operations resolve it by repeating
	// the start point.
	ErrDegenerateGeometry = errors.New("degenerate geometry")
)

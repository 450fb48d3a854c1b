// Package core defines the fundamental types and errors for Slotwise.
package core

import "errors"

// Errors that can occur across the system. Callers classify with
// errors.Is; everything except ErrExternalStore is recoverable by
// re-prompting the user.
var (
	// Parsing / resolution errors
	ErrAmbiguousTime       = errors.New("ambiguous time expression")
	ErrUnrecognizedCommand = errors.New("unrecognized command")
	ErrMissingSlot         = errors.New("missing required field")

	// Planning errors
	ErrConflict = errors.New("requested window conflicts with existing events")
	ErrNoSlot   = errors.New("no free slot within lookahead horizon")

	// Calendar store errors
	ErrExternalStore = errors.New("calendar store unavailable")
	ErrNotFound      = errors.New("event not found")
	ErrReadOnlyStore = errors.New("calendar store is read-only")
)

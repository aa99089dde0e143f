package app

import "errors"

// ErrorMessage is shown whenever a thought cannot be generated.
const ErrorMessage = "The Oracle is silent. Check your connection or try again later."

var (
	// ErrSuperseded is returned when the inputs changed while a load was in flight.
	// The result was cached but not displayed.
	ErrSuperseded = errors.New("load superseded by a newer selection")
	ErrNoUser     = errors.New("no user is signed in")
)

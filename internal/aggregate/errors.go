package aggregate

import "errors"

var (
	// ErrNotFound is returned for entity ids that are not a current aggregate.
	ErrNotFound = errors.New("aggregate: not found")

	// ErrNotSwitch is returned when a command targets a sensor aggregate.
	ErrNotSwitch = errors.New("aggregate: not a switch")
)

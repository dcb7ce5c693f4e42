package configflow

import "errors"

var (
	// ErrEntryNotFound is returned when no entry has the requested id.
	ErrEntryNotFound = errors.New("configflow: entry not found")

	// ErrEntryExists is returned when an entry for the domain already exists.
	ErrEntryExists = errors.New("configflow: entry already exists")

	// ErrInvalidSelection is returned when submitted input names a field or
	// a value the form did not offer.
	ErrInvalidSelection = errors.New("configflow: invalid selection")
)

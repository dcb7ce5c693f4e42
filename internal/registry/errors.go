package registry

import "errors"

// Domain errors for the registry package. Check with errors.Is.
var (
	ErrAreaNotFound   = errors.New("registry: area not found")
	ErrDeviceNotFound = errors.New("registry: device not found")
	ErrEntityNotFound = errors.New("registry: entity not found")

	ErrInvalidArea   = errors.New("registry: invalid area")
	ErrInvalidDevice = errors.New("registry: invalid device")
	ErrInvalidEntity = errors.New("registry: invalid entity")
)

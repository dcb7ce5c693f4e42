package registry

import (
	"fmt"
	"regexp"
	"strings"
)

const maxNameLength = 100

// entityIDRegex matches "<domain>.<object_id>" with a lower snake case domain.
var entityIDRegex = regexp.MustCompile(`^[a-z0-9_]+\.\S+$`)

// ValidateArea checks an area before it is stored.
func ValidateArea(a *Area) error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidArea)
	}
	return validateName(ErrInvalidArea, a.Name, true)
}

// ValidateDevice checks a device before it is stored.
func ValidateDevice(d *Device) error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	return validateName(ErrInvalidDevice, d.Name, true)
}

// ValidateEntity checks an entity before it is stored.
func ValidateEntity(e *Entity) error {
	if !entityIDRegex.MatchString(e.ID) {
		return fmt.Errorf("%w: entity id %q must look like domain.object_id", ErrInvalidEntity, e.ID)
	}
	if e.Platform == "" {
		return fmt.Errorf("%w: platform is required", ErrInvalidEntity)
	}
	if e.Name != nil {
		if err := validateName(ErrInvalidEntity, *e.Name, false); err != nil {
			return err
		}
	}
	return nil
}

func validateName(kind error, name string, required bool) error {
	if required && strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", kind)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", kind, maxNameLength)
	}
	return nil
}

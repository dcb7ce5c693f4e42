package registry

import (
	"strings"
	"time"
)

// Area is a named physical place. Names are not required to be unique.
type Area struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Device is a physical unit that may host several entities.
type Device struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	AreaID       *string   `json:"area_id,omitempty"`
	Manufacturer *string   `json:"manufacturer,omitempty"`
	Model        *string   `json:"model,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Entity is an addressable unit identified by "<domain>.<object_id>".
type Entity struct {
	ID           string    `json:"entity_id"`
	UniqueID     *string   `json:"unique_id,omitempty"`
	Platform     string    `json:"platform"`
	Name         *string   `json:"name,omitempty"`
	OriginalName *string   `json:"original_name,omitempty"`
	AreaID       *string   `json:"area_id,omitempty"`
	DeviceID     *string   `json:"device_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName returns the user-set name, else the integration-provided
// name, else the entity id.
func (e *Entity) DisplayName() string {
	if e.Name != nil && *e.Name != "" {
		return *e.Name
	}
	if e.OriginalName != nil && *e.OriginalName != "" {
		return *e.OriginalName
	}
	return e.ID
}

// Domain returns the part of the entity id before the first dot.
func (e *Entity) Domain() string {
	domain, _, _ := strings.Cut(e.ID, ".")
	return domain
}

// Snapshot is a read-only copy of all three directories taken at one
// instant. Slices are owned by the snapshot.
type Snapshot struct {
	Areas    []Area
	Devices  []Device
	Entities []Entity
}

// AreaByID indexes the snapshot's areas.
func (s Snapshot) AreaByID() map[string]Area {
	m := make(map[string]Area, len(s.Areas))
	for _, a := range s.Areas {
		m[a.ID] = a
	}
	return m
}

// DeviceByID indexes the snapshot's devices.
func (s Snapshot) DeviceByID() map[string]Device {
	m := make(map[string]Device, len(s.Devices))
	for _, d := range s.Devices {
		m[d.ID] = d
	}
	return m
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func (d Device) clone() Device {
	d.AreaID = cloneStr(d.AreaID)
	d.Manufacturer = cloneStr(d.Manufacturer)
	d.Model = cloneStr(d.Model)
	return d
}

func (e Entity) clone() Entity {
	e.UniqueID = cloneStr(e.UniqueID)
	e.Name = cloneStr(e.Name)
	e.OriginalName = cloneStr(e.OriginalName)
	e.AreaID = cloneStr(e.AreaID)
	e.DeviceID = cloneStr(e.DeviceID)
	return e
}

// StrPtr returns a pointer to s. Convenience for optional fields.
func StrPtr(s string) *string {
	return &s
}

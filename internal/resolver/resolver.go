// Package resolver groups fan entities by the area they belong to.
//
// Resolution is a pure function of a registry snapshot and an exclusion
// list. The configuration flow uses it to build its form and the aggregate
// setup uses it to decide which summary entities to create.
package resolver

import (
	"sort"
	"strings"

	"github.com/nerrad567/area-fans/internal/registry"
)

// DefaultDomainPrefix selects fan entities by entity id.
const DefaultDomainPrefix = "fan."

// Fan is a resolved fan entity.
type Fan struct {
	ID   string `json:"entity_id"`
	Name string `json:"name"`
}

// AreaFans is the bucket of one area, keyed by area name.
type AreaFans struct {
	Area     string `json:"area"`
	Included []Fan  `json:"included"`
	Excluded []Fan  `json:"excluded"`
}

// Total returns the number of fans in the bucket, included or not.
func (a AreaFans) Total() int {
	return len(a.Included) + len(a.Excluded)
}

// IncludedIDs returns the entity ids of the included fans, in order.
func (a AreaFans) IncludedIDs() []string {
	return fanIDs(a.Included)
}

// ExcludedIDs returns the entity ids of the excluded fans, in order.
func (a AreaFans) ExcludedIDs() []string {
	return fanIDs(a.Excluded)
}

// Options tune resolution. The zero value selects DefaultDomainPrefix.
type Options struct {
	DomainPrefix string
}

// Logger receives debug output about entities that could not be placed.
type Logger interface {
	Debug(msg string, args ...any)
}

// Resolve partitions every fan entity of snap into per-area buckets.
//
// Every area of the snapshot gets a bucket, including areas without fans;
// areas sharing a name share a bucket. A fan's area is its own area when
// set, otherwise its device's area. Fans whose area cannot be found are
// dropped. Buckets are ordered by area name and fans by display name
// (case-insensitive, ties by entity id).
func Resolve(snap registry.Snapshot, excluded []string, opts Options) []AreaFans {
	return ResolveWithLogger(snap, excluded, opts, nil)
}

// ResolveWithLogger is Resolve reporting dropped entities to logger.
func ResolveWithLogger(snap registry.Snapshot, excluded []string, opts Options, logger Logger) []AreaFans {
	prefix := opts.DomainPrefix
	if prefix == "" {
		prefix = DefaultDomainPrefix
	}

	skip := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}

	areas := snap.AreaByID()
	devices := snap.DeviceByID()

	buckets := make(map[string]*AreaFans, len(areas))
	for _, a := range snap.Areas {
		if _, ok := buckets[a.Name]; !ok {
			buckets[a.Name] = &AreaFans{Area: a.Name, Included: []Fan{}, Excluded: []Fan{}}
		}
	}

	for i := range snap.Entities {
		e := &snap.Entities[i]
		if !strings.HasPrefix(e.ID, prefix) {
			continue
		}

		area, ok := owningArea(e, areas, devices)
		if !ok {
			if logger != nil {
				logger.Debug("fan has no resolvable area", "entity_id", e.ID)
			}
			continue
		}

		fan := Fan{ID: e.ID, Name: e.DisplayName()}
		bucket := buckets[area.Name]
		if _, isExcluded := skip[e.ID]; isExcluded {
			bucket.Excluded = append(bucket.Excluded, fan)
		} else {
			bucket.Included = append(bucket.Included, fan)
		}
	}

	result := make([]AreaFans, 0, len(buckets))
	for _, b := range buckets {
		sortFans(b.Included)
		sortFans(b.Excluded)
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Area < result[j].Area })
	return result
}

// owningArea looks up the entity's own area, falling back to its device's
// area only when the entity carries none. An entity area id that does not
// exist is not retried through the device.
func owningArea(e *registry.Entity, areas map[string]registry.Area, devices map[string]registry.Device) (registry.Area, bool) {
	if e.AreaID != nil {
		a, ok := areas[*e.AreaID]
		return a, ok
	}
	if e.DeviceID == nil {
		return registry.Area{}, false
	}
	d, ok := devices[*e.DeviceID]
	if !ok || d.AreaID == nil {
		return registry.Area{}, false
	}
	a, ok := areas[*d.AreaID]
	return a, ok
}

func sortFans(fans []Fan) {
	sort.Slice(fans, func(i, j int) bool {
		li, lj := strings.ToLower(fans[i].Name), strings.ToLower(fans[j].Name)
		if li != lj {
			return li < lj
		}
		return fans[i].ID < fans[j].ID
	})
}

func fanIDs(fans []Fan) []string {
	ids := make([]string, len(fans))
	for i, f := range fans {
		ids[i] = f.ID
	}
	return ids
}

// Populated keeps buckets holding at least one fan, included or excluded.
// This is what the configuration form shows.
func Populated(buckets []AreaFans) []AreaFans {
	return filter(buckets, func(b AreaFans) bool { return b.Total() > 0 })
}

// Active keeps buckets with at least one included fan. These are the areas
// that get aggregate entities.
func Active(buckets []AreaFans) []AreaFans {
	return filter(buckets, func(b AreaFans) bool { return len(b.Included) > 0 })
}

// Inactive returns the buckets Active drops.
func Inactive(buckets []AreaFans) []AreaFans {
	return filter(buckets, func(b AreaFans) bool { return len(b.Included) == 0 })
}

func filter(buckets []AreaFans, keep func(AreaFans) bool) []AreaFans {
	out := make([]AreaFans, 0, len(buckets))
	for _, b := range buckets {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

// IncludedUnion returns the sorted, de-duplicated ids of every included fan.
func IncludedUnion(buckets []AreaFans) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, b := range buckets {
		for _, f := range b.Included {
			if _, dup := seen[f.ID]; dup {
				continue
			}
			seen[f.ID] = struct{}{}
			ids = append(ids, f.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of fans across buckets, included or not.
func Count(buckets []AreaFans) int {
	n := 0
	for _, b := range buckets {
		n += b.Total()
	}
	return n
}

package aggregate

import (
	"strconv"
	"strings"
)

// Platform is recorded on every entity registered by this package.
const Platform = "area_fans"

// Kind distinguishes the two aggregate variants.
type Kind string

// Aggregate kinds. The value doubles as the entity id domain.
const (
	KindSensor Kind = "sensor"
	KindSwitch Kind = "switch"
)

// Names and ids of the whole-home aggregates.
const (
	AllName     = "All Area Fans"
	AllUniqueID = "area_fans_all"
	allObjectID = "all_area_fans"
)

// Icons reported with every snapshot.
const (
	IconOn  = "mdi:fan"
	IconOff = "mdi:fan-off"
)

// Slug lower-cases name and replaces spaces with underscores.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// AreaEntityID returns the entity id of an area aggregate of kind.
func AreaEntityID(kind Kind, area string) string {
	return areaEntityID(kind, Slug(area))
}

func areaEntityID(kind Kind, slug string) string {
	return string(kind) + ".fans_" + slug
}

// allSlug would give an area the whole-home unique id.
const allSlug = "all"

// AreaSlugs assigns a distinct slug to every area name, taking names in
// the given order. A slug already used by an earlier area, or one that
// would reuse the whole-home unique id, gets the first free numeric
// suffix: "Living Room" and "living room" become living_room and
// living_room_2.
func AreaSlugs(areas []string) map[string]string {
	slugs := make(map[string]string, len(areas))
	taken := map[string]struct{}{allSlug: {}}
	for _, area := range areas {
		if _, ok := slugs[area]; ok {
			continue
		}
		base := Slug(area)
		slug := base
		for n := 2; ; n++ {
			if _, ok := taken[slug]; !ok {
				break
			}
			slug = base + "_" + strconv.Itoa(n)
		}
		taken[slug] = struct{}{}
		slugs[area] = slug
	}
	return slugs
}

// AllEntityID returns the entity id of the whole-home aggregate of kind.
func AllEntityID(kind Kind) string {
	return string(kind) + "." + allObjectID
}

// Definition is the fixed description of one aggregate entity.
type Definition struct {
	EntityID string
	UniqueID string
	Name     string
	Kind     Kind
	// Area is empty for the whole-home aggregate.
	Area     string
	Members  []string
	Excluded []string
}

// AreaDefinition describes the aggregate of kind for one area.
func AreaDefinition(kind Kind, area string, members, excluded []string) Definition {
	return areaDefinition(kind, area, Slug(area), members, excluded)
}

func areaDefinition(kind Kind, area, slug string, members, excluded []string) Definition {
	return Definition{
		EntityID: areaEntityID(kind, slug),
		UniqueID: "area_fans_" + slug,
		Name:     "Fans " + area,
		Kind:     kind,
		Area:     area,
		Members:  nonNil(members),
		Excluded: nonNil(excluded),
	}
}

// AllDefinition describes the whole-home aggregate of kind.
func AllDefinition(kind Kind, members, excluded []string) Definition {
	return Definition{
		EntityID: AllEntityID(kind),
		UniqueID: AllUniqueID,
		Name:     AllName,
		Kind:     kind,
		Members:  nonNil(members),
		Excluded: nonNil(excluded),
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return append([]string(nil), ids...)
}

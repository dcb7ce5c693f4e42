package resolver

import (
	"reflect"
	"testing"

	"github.com/nerrad567/area-fans/internal/registry"
)

func str(s string) *string { return &s }

// homeSnapshot is a small house:
//
//	Kitchen: fan.k1 (own area)
//	Bedroom: fan.b1 (via device), fan.b2 (own area)
//	Garage:  no fans
//	fan.orphan has no area and no device; fan.ghost points at a missing area.
func homeSnapshot() registry.Snapshot {
	return registry.Snapshot{
		Areas: []registry.Area{
			{ID: "kitchen", Name: "Kitchen"},
			{ID: "bedroom", Name: "Bedroom"},
			{ID: "garage", Name: "Garage"},
		},
		Devices: []registry.Device{
			{ID: "dev-b1", Name: "Ceiling", AreaID: str("bedroom")},
			{ID: "dev-kitchen", Name: "Hood", AreaID: str("kitchen")},
		},
		Entities: []registry.Entity{
			{ID: "fan.k1", OriginalName: str("Extractor"), AreaID: str("kitchen")},
			{ID: "fan.b1", Name: str("ceiling"), DeviceID: str("dev-b1")},
			{ID: "fan.b2", OriginalName: str("Box Fan"), AreaID: str("bedroom")},
			{ID: "fan.orphan"},
			{ID: "fan.ghost", AreaID: str("attic"), DeviceID: str("dev-kitchen")},
			{ID: "light.k1", AreaID: str("kitchen")},
		},
	}
}

func TestResolve_Buckets(t *testing.T) {
	got := Resolve(homeSnapshot(), nil, Options{})

	want := []AreaFans{
		{Area: "Bedroom", Included: []Fan{{ID: "fan.b2", Name: "Box Fan"}, {ID: "fan.b1", Name: "ceiling"}}, Excluded: []Fan{}},
		{Area: "Garage", Included: []Fan{}, Excluded: []Fan{}},
		{Area: "Kitchen", Included: []Fan{{ID: "fan.k1", Name: "Extractor"}}, Excluded: []Fan{}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Resolve() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestResolve_Exclusion(t *testing.T) {
	got := Resolve(homeSnapshot(), []string{"fan.k1", "fan.unknown"}, Options{})

	kitchen := got[2]
	if kitchen.Area != "Kitchen" {
		t.Fatalf("bucket[2] = %q, want Kitchen", kitchen.Area)
	}
	if len(kitchen.Included) != 0 {
		t.Errorf("Kitchen included = %v, want none", kitchen.Included)
	}
	if !reflect.DeepEqual(kitchen.ExcludedIDs(), []string{"fan.k1"}) {
		t.Errorf("Kitchen excluded = %v, want [fan.k1]", kitchen.ExcludedIDs())
	}

	active := Active(got)
	if len(active) != 1 || active[0].Area != "Bedroom" {
		t.Errorf("Active() = %+v, want only Bedroom", active)
	}
	populated := Populated(got)
	if len(populated) != 2 {
		t.Errorf("Populated() = %+v, want Bedroom and Kitchen", populated)
	}
	inactive := Inactive(got)
	if len(inactive) != 2 || inactive[0].Area != "Garage" || inactive[1].Area != "Kitchen" {
		t.Errorf("Inactive() = %+v, want Garage and Kitchen", inactive)
	}
}

func TestResolve_PartitionCompleteness(t *testing.T) {
	snap := homeSnapshot()
	excluded := []string{"fan.b1"}

	buckets := Resolve(snap, excluded, Options{})

	seen := make(map[string]int)
	for _, b := range buckets {
		for _, f := range b.Included {
			seen[f.ID]++
			if f.ID == "fan.b1" {
				t.Errorf("excluded fan %s listed as included", f.ID)
			}
		}
		for _, f := range b.Excluded {
			seen[f.ID]++
			if f.ID != "fan.b1" {
				t.Errorf("fan %s listed as excluded", f.ID)
			}
		}
	}

	// Every resolvable fan appears exactly once; unresolvable ones never.
	want := map[string]int{"fan.k1": 1, "fan.b1": 1, "fan.b2": 1}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("fan occurrences = %v, want %v", seen, want)
	}
	if Count(buckets) != 3 {
		t.Errorf("Count() = %d, want 3", Count(buckets))
	}
}

func TestResolve_Idempotent(t *testing.T) {
	snap := homeSnapshot()
	first := Resolve(snap, []string{"fan.b2"}, Options{})
	second := Resolve(snap, []string{"fan.b2"}, Options{})

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Resolve not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestResolve_InputOrderDoesNotMatter(t *testing.T) {
	snap := homeSnapshot()
	reversed := registry.Snapshot{}
	for i := len(snap.Areas) - 1; i >= 0; i-- {
		reversed.Areas = append(reversed.Areas, snap.Areas[i])
	}
	for i := len(snap.Devices) - 1; i >= 0; i-- {
		reversed.Devices = append(reversed.Devices, snap.Devices[i])
	}
	for i := len(snap.Entities) - 1; i >= 0; i-- {
		reversed.Entities = append(reversed.Entities, snap.Entities[i])
	}

	if !reflect.DeepEqual(Resolve(snap, nil, Options{}), Resolve(reversed, nil, Options{})) {
		t.Error("Resolve result depends on input order")
	}
}

func TestResolve_DuplicateAreaNamesShareBucket(t *testing.T) {
	snap := registry.Snapshot{
		Areas: []registry.Area{
			{ID: "office-1", Name: "Office"},
			{ID: "office-2", Name: "Office"},
		},
		Entities: []registry.Entity{
			{ID: "fan.a", AreaID: str("office-1")},
			{ID: "fan.b", AreaID: str("office-2")},
		},
	}

	got := Resolve(snap, nil, Options{})
	if len(got) != 1 {
		t.Fatalf("buckets = %d, want 1", len(got))
	}
	if !reflect.DeepEqual(got[0].IncludedIDs(), []string{"fan.a", "fan.b"}) {
		t.Errorf("Office included = %v", got[0].IncludedIDs())
	}
}

func TestResolve_SortingTies(t *testing.T) {
	snap := registry.Snapshot{
		Areas: []registry.Area{{ID: "a", Name: "a-lower"}, {ID: "b", Name: "Zeta"}},
		Entities: []registry.Entity{
			{ID: "fan.z", Name: str("Same"), AreaID: str("b")},
			{ID: "fan.y", Name: str("same"), AreaID: str("b")},
			{ID: "fan.x", Name: str("alpha"), AreaID: str("b")},
		},
	}

	got := Resolve(snap, nil, Options{})
	// Byte-wise: uppercase sorts before lowercase.
	if got[0].Area != "Zeta" || got[1].Area != "a-lower" {
		t.Errorf("area order = %q, %q", got[0].Area, got[1].Area)
	}
	if !reflect.DeepEqual(got[0].IncludedIDs(), []string{"fan.x", "fan.y", "fan.z"}) {
		t.Errorf("fan order = %v", got[0].IncludedIDs())
	}
}

func TestResolve_CustomPrefix(t *testing.T) {
	snap := homeSnapshot()
	got := Resolve(snap, nil, Options{DomainPrefix: "light."})

	if Count(got) != 1 {
		t.Errorf("Count() = %d, want 1 light", Count(got))
	}
}

type debugRecorder struct{ ids []any }

func (d *debugRecorder) Debug(_ string, args ...any) {
	d.ids = append(d.ids, args[1])
}

func TestResolveWithLogger_ReportsDropped(t *testing.T) {
	rec := &debugRecorder{}
	ResolveWithLogger(homeSnapshot(), nil, Options{}, rec)

	if len(rec.ids) != 2 {
		t.Fatalf("dropped = %v, want fan.ghost and fan.orphan", rec.ids)
	}
}

func TestIncludedUnion(t *testing.T) {
	buckets := []AreaFans{
		{Area: "B", Included: []Fan{{ID: "fan.z"}, {ID: "fan.a"}}},
		{Area: "A", Included: []Fan{{ID: "fan.a"}, {ID: "fan.m"}}},
	}

	got := IncludedUnion(buckets)
	want := []string{"fan.a", "fan.m", "fan.z"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("IncludedUnion() = %v, want %v", got, want)
	}
	if IncludedUnion(nil) != nil {
		t.Error("IncludedUnion(nil) should be nil")
	}
}

package aggregate

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nerrad567/area-fans/internal/command"
	"github.com/nerrad567/area-fans/internal/state"
)

func entityIDs(entities []Entity) []string {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.Definition().EntityID)
	}
	return ids
}

func attachAll(entities []Entity) map[string]Snapshot {
	out := make(map[string]Snapshot, len(entities))
	for _, e := range entities {
		e.Attach()
		out[e.Definition().EntityID] = e.Snapshot()
	}
	return out
}

func TestSetup_KitchenAndBedroom(t *testing.T) {
	dir, store := kitchenBedroom()
	deps := Deps{Directory: dir, States: store, Dispatcher: &recordingDispatcher{}}

	entities, err := Setup(context.Background(), deps, nil, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	wantIDs := []string{
		"sensor.fans_bedroom", "switch.fans_bedroom",
		"sensor.fans_kitchen", "switch.fans_kitchen",
		"sensor.all_area_fans", "switch.all_area_fans",
	}
	if got := entityIDs(entities); !reflect.DeepEqual(got, wantIDs) {
		t.Fatalf("entities = %v, want %v", got, wantIDs)
	}

	snaps := attachAll(entities)
	tests := []struct {
		id      string
		state   string
		countOf string
		members []string
	}{
		{"sensor.fans_kitchen", state.On, "1/2", []string{"fan.k1", "fan.k2"}},
		{"switch.fans_kitchen", state.On, "1/2", []string{"fan.k1", "fan.k2"}},
		{"sensor.fans_bedroom", state.Off, "0/1", []string{"fan.b1"}},
		{"sensor.all_area_fans", state.On, "1/3", []string{"fan.b1", "fan.k1", "fan.k2"}},
	}
	for _, tt := range tests {
		got := snaps[tt.id]
		if got.State != tt.state || got.Attributes.CountOf != tt.countOf {
			t.Errorf("%s = %s %s, want %s %s", tt.id, got.State, got.Attributes.CountOf, tt.state, tt.countOf)
		}
		if !reflect.DeepEqual(got.Members, tt.members) {
			t.Errorf("%s members = %v, want %v", tt.id, got.Members, tt.members)
		}
	}

	for _, id := range wantIDs {
		if !dir.has(id) {
			t.Errorf("%s not registered", id)
		}
	}
	if e := dir.entities["switch.fans_kitchen"]; e.Platform != Platform || e.UniqueID == nil || *e.UniqueID != "area_fans_kitchen" {
		t.Errorf("registered entry = %+v, want platform %q unique id area_fans_kitchen", e, Platform)
	}
}

func TestSetup_Exclusion(t *testing.T) {
	dir, store := kitchenBedroom()
	deps := Deps{Directory: dir, States: store, Dispatcher: &recordingDispatcher{}}

	entities, err := Setup(context.Background(), deps, []string{"fan.k1"}, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	snaps := attachAll(entities)

	kitchen := snaps["sensor.fans_kitchen"]
	if kitchen.State != state.Off || kitchen.Attributes.CountOf != "0/1" {
		t.Errorf("kitchen = %s %s, want off 0/1", kitchen.State, kitchen.Attributes.CountOf)
	}
	if got := kitchen.Attributes.ExcludedFans; !reflect.DeepEqual(got, []string{"fan.k1"}) {
		t.Errorf("kitchen ExcludedFans = %v, want [fan.k1]", got)
	}
	if got := snaps["sensor.fans_bedroom"].Attributes.ExcludedFans; len(got) != 0 {
		t.Errorf("bedroom ExcludedFans = %v, want empty", got)
	}

	all := snaps["switch.all_area_fans"]
	if !reflect.DeepEqual(all.Members, []string{"fan.b1", "fan.k2"}) {
		t.Errorf("all members = %v, want [fan.b1 fan.k2]", all.Members)
	}
	if all.State != state.Off {
		t.Errorf("all State = %q, want %q", all.State, state.Off)
	}
	if got := all.Attributes.ExcludedFans; !reflect.DeepEqual(got, []string{"fan.k1"}) {
		t.Errorf("all ExcludedFans = %v, want [fan.k1]", got)
	}
}

func TestSetup_PrunesAreasWithoutIncludedFans(t *testing.T) {
	dir, store := kitchenBedroom()
	deps := Deps{Directory: dir, States: store, Dispatcher: &recordingDispatcher{}}
	ctx := context.Background()

	if _, err := Setup(ctx, deps, nil, nil); err != nil {
		t.Fatalf("first Setup: %v", err)
	}
	if !dir.has("switch.fans_bedroom") {
		t.Fatal("switch.fans_bedroom not registered")
	}

	entities, err := Setup(ctx, deps, []string{"fan.b1"}, nil)
	if err != nil {
		t.Fatalf("second Setup: %v", err)
	}
	for _, id := range entityIDs(entities) {
		if id == "sensor.fans_bedroom" || id == "switch.fans_bedroom" {
			t.Errorf("unexpected aggregate %s", id)
		}
	}
	for _, id := range []string{"sensor.fans_bedroom", "switch.fans_bedroom"} {
		if dir.has(id) {
			t.Errorf("%s still registered", id)
		}
	}
}

func TestSetup_NoFans(t *testing.T) {
	dir := newFakeDirectory()
	dir.addArea("garage", "Garage")
	deps := Deps{Directory: dir, States: state.NewStore(), Dispatcher: &recordingDispatcher{}}

	entities, err := Setup(context.Background(), deps, nil, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("entities = %v, want none", entityIDs(entities))
	}
}

func TestSetup_AllExcluded(t *testing.T) {
	dir, store := kitchenBedroom()
	deps := Deps{Directory: dir, States: store, Dispatcher: &recordingDispatcher{}}

	entities, err := Setup(context.Background(), deps, []string{"fan.k1", "fan.k2", "fan.b1"}, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if len(entities) != 0 {
		t.Errorf("entities = %v, want none", entityIDs(entities))
	}
}

func TestSetup_OrderInsensitive(t *testing.T) {
	dirA, store := kitchenBedroom()

	dirB := newFakeDirectory()
	dirB.addArea("bedroom", "Bedroom")
	dirB.addArea("kitchen", "Kitchen")
	dirB.addDevice("dev-k2", "kitchen")
	dirB.addFan("fan.b1", "Bedroom Fan", "bedroom", "")
	dirB.addFan("fan.k2", "Kitchen Extractor", "", "dev-k2")
	dirB.addFan("fan.k1", "Kitchen Ceiling", "kitchen", "")

	disp := command.NewLocalDispatcher(store)
	a, err := Setup(context.Background(), Deps{Directory: dirA, States: store, Dispatcher: disp}, nil, nil)
	if err != nil {
		t.Fatalf("Setup A: %v", err)
	}
	b, err := Setup(context.Background(), Deps{Directory: dirB, States: store, Dispatcher: disp}, nil, nil)
	if err != nil {
		t.Fatalf("Setup B: %v", err)
	}

	if len(a) != len(b) {
		t.Fatalf("len = %d and %d, want equal", len(a), len(b))
	}
	for i := range a {
		if !reflect.DeepEqual(a[i].Definition(), b[i].Definition()) {
			t.Errorf("definition %d differs: %+v vs %+v", i, a[i].Definition(), b[i].Definition())
		}
	}
}

func TestSetup_DistinctIDsForCollidingAreaNames(t *testing.T) {
	dir := newFakeDirectory()
	dir.addArea("lr1", "Living Room")
	dir.addArea("lr2", "living room")
	dir.addArea("all", "All")
	dir.addFan("fan.lr1", "Ceiling", "lr1", "")
	dir.addFan("fan.lr2", "Pedestal", "lr2", "")
	dir.addFan("fan.all", "Loft", "all", "")
	logger := &recordingLogger{}
	deps := Deps{Directory: dir, States: state.NewStore(), Dispatcher: &recordingDispatcher{}, Logger: logger}

	entities, err := Setup(context.Background(), deps, nil, nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	wantIDs := []string{
		"sensor.fans_all_2", "switch.fans_all_2",
		"sensor.fans_living_room", "switch.fans_living_room",
		"sensor.fans_living_room_2", "switch.fans_living_room_2",
		"sensor.all_area_fans", "switch.all_area_fans",
	}
	if got := entityIDs(entities); !reflect.DeepEqual(got, wantIDs) {
		t.Fatalf("entities = %v, want %v", got, wantIDs)
	}

	seen := make(map[string]string)
	for _, e := range entities {
		def := e.Definition()
		key := string(def.Kind) + "/" + def.UniqueID
		if other, ok := seen[key]; ok {
			t.Errorf("%s and %s share unique id %s", other, def.EntityID, def.UniqueID)
		}
		seen[key] = def.EntityID
	}
	for _, id := range wantIDs {
		if !dir.has(id) {
			t.Errorf("%s not registered", id)
		}
	}
	if got := logger.count("warn"); got != 2 {
		t.Errorf("warnings = %d, want 2", got)
	}

	members := map[string][]string{}
	for _, e := range entities {
		members[e.Definition().EntityID] = e.Definition().Members
	}
	if got := members["sensor.fans_living_room_2"]; !reflect.DeepEqual(got, []string{"fan.lr2"}) {
		t.Errorf("living room members = %v, want [fan.lr2]", got)
	}
}

func TestSetup_Errors(t *testing.T) {
	if _, err := Setup(context.Background(), Deps{}, nil, nil); err == nil {
		t.Error("Setup with empty deps should fail")
	}

	dir, store := kitchenBedroom()
	dir.failSnap = errors.New("database closed")
	_, err := Setup(context.Background(), Deps{Directory: dir, States: store, Dispatcher: &recordingDispatcher{}}, nil, nil)
	if !errors.Is(err, dir.failSnap) {
		t.Errorf("Setup error = %v, want wrapped %v", err, dir.failSnap)
	}
}

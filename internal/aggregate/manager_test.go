package aggregate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/area-fans/internal/command"
	"github.com/nerrad567/area-fans/internal/state"
)

func TestManager_ReloadAndCommand(t *testing.T) {
	dir, store := kitchenBedroom()
	mgr := NewManager(Deps{Directory: dir, States: store, Dispatcher: command.NewLocalDispatcher(store)})
	ctx := context.Background()

	var mu sync.Mutex
	published := make(map[string]Snapshot)
	mgr.AddObserver(func(s Snapshot) {
		mu.Lock()
		published[s.EntityID] = s
		mu.Unlock()
	})

	if err := mgr.Reload(ctx, nil); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	defer mgr.Close()

	if got := len(mgr.List()); got != 6 {
		t.Fatalf("List() len = %d, want 6", got)
	}

	snap, err := mgr.TurnOn(ctx, "switch.fans_kitchen")
	if err != nil {
		t.Fatalf("TurnOn: %v", err)
	}
	if snap.Attributes.CountOf != "2/2" {
		t.Errorf("kitchen CountOf = %q, want %q", snap.Attributes.CountOf, "2/2")
	}

	all, err := mgr.Get("sensor.all_area_fans")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if all.Attributes.CountOf != "2/3" {
		t.Errorf("all CountOf = %q, want %q", all.Attributes.CountOf, "2/3")
	}

	mu.Lock()
	got := published["sensor.fans_kitchen"]
	mu.Unlock()
	if got.Attributes.CountOf != "2/2" {
		t.Errorf("published kitchen sensor CountOf = %q, want %q", got.Attributes.CountOf, "2/2")
	}
}

func TestManager_LookupErrors(t *testing.T) {
	dir, store := kitchenBedroom()
	mgr := NewManager(Deps{Directory: dir, States: store, Dispatcher: &recordingDispatcher{}})
	ctx := context.Background()
	if err := mgr.Reload(ctx, nil); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	defer mgr.Close()

	if _, err := mgr.Get("sensor.nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get unknown error = %v, want ErrNotFound", err)
	}
	if _, err := mgr.TurnOn(ctx, "sensor.fans_kitchen"); !errors.Is(err, ErrNotSwitch) {
		t.Errorf("TurnOn sensor error = %v, want ErrNotSwitch", err)
	}
	if _, err := mgr.TurnOff(ctx, "switch.nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("TurnOff unknown error = %v, want ErrNotFound", err)
	}
}

func TestManager_ReloadReplacesSet(t *testing.T) {
	dir, store := kitchenBedroom()
	mgr := NewManager(Deps{Directory: dir, States: store, Dispatcher: &recordingDispatcher{}})
	ctx := context.Background()

	if err := mgr.Reload(ctx, nil); err != nil {
		t.Fatalf("first Reload: %v", err)
	}
	if got := store.ListenerCount("fan.k1"); got != 3 {
		t.Fatalf("ListenerCount(fan.k1) = %d, want 3 (kitchen sensor, switch, all)", got)
	}

	if err := mgr.Reload(ctx, []string{"fan.k1"}); err != nil {
		t.Fatalf("second Reload: %v", err)
	}
	if got := store.ListenerCount("fan.k1"); got != 0 {
		t.Errorf("ListenerCount(fan.k1) after exclusion = %d, want 0", got)
	}
	if got := store.ListenerCount("fan.k2"); got != 3 {
		t.Errorf("ListenerCount(fan.k2) = %d, want 3", got)
	}

	if err := mgr.Reload(ctx, []string{"fan.k1", "fan.k2", "fan.b1"}); err != nil {
		t.Fatalf("third Reload: %v", err)
	}
	if got := len(mgr.List()); got != 0 {
		t.Errorf("List() len = %d, want 0", got)
	}
	for _, id := range []string{"sensor.all_area_fans", "switch.all_area_fans", "switch.fans_kitchen"} {
		if dir.has(id) {
			t.Errorf("%s still registered", id)
		}
	}

	mgr.Close()
	if got := store.ListenerCount("fan.k2"); got != 0 {
		t.Errorf("ListenerCount(fan.k2) after Close = %d, want 0", got)
	}
}

func TestManager_FailedReloadKeepsSet(t *testing.T) {
	dir, store := kitchenBedroom()
	mgr := NewManager(Deps{Directory: dir, States: store, Dispatcher: &recordingDispatcher{}})
	ctx := context.Background()
	if err := mgr.Reload(ctx, nil); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	defer mgr.Close()

	dir.failSnap = errors.New("database closed")
	if err := mgr.Reload(ctx, []string{"fan.k1"}); err == nil {
		t.Fatal("Reload should fail")
	}
	if got := len(mgr.List()); got != 6 {
		t.Errorf("List() len = %d, want 6", got)
	}

	store.Set("fan.b1", state.On, nil)
	snap, _ := mgr.Get("sensor.fans_bedroom")
	if snap.State != state.On {
		t.Errorf("bedroom State = %q, want %q", snap.State, state.On)
	}
}

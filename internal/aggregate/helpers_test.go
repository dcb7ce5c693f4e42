package aggregate

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/nerrad567/area-fans/internal/command"
	"github.com/nerrad567/area-fans/internal/registry"
	"github.com/nerrad567/area-fans/internal/state"
)

// fakeDirectory is an in-memory Directory.
type fakeDirectory struct {
	mu       sync.Mutex
	areas    []registry.Area
	devices  []registry.Device
	entities map[string]registry.Entity
	failSnap error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{entities: make(map[string]registry.Entity)}
}

func (d *fakeDirectory) addArea(id, name string) {
	d.areas = append(d.areas, registry.Area{ID: id, Name: name})
}

func (d *fakeDirectory) addDevice(id, areaID string) {
	d.devices = append(d.devices, registry.Device{ID: id, Name: id, AreaID: registry.StrPtr(areaID)})
}

// addFan registers a fan placed either directly (areaID) or through a
// device (deviceID). Empty strings leave the field unset.
func (d *fakeDirectory) addFan(id, name, areaID, deviceID string) {
	e := registry.Entity{ID: id, Platform: "test", Name: registry.StrPtr(name)}
	if areaID != "" {
		e.AreaID = registry.StrPtr(areaID)
	}
	if deviceID != "" {
		e.DeviceID = registry.StrPtr(deviceID)
	}
	d.entities[id] = e
}

func (d *fakeDirectory) Snapshot(context.Context) (registry.Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failSnap != nil {
		return registry.Snapshot{}, d.failSnap
	}
	snap := registry.Snapshot{
		Areas:   append([]registry.Area(nil), d.areas...),
		Devices: append([]registry.Device(nil), d.devices...),
	}
	for _, e := range d.entities {
		snap.Entities = append(snap.Entities, e)
	}
	sort.Slice(snap.Entities, func(i, j int) bool { return snap.Entities[i].ID < snap.Entities[j].ID })
	return snap, nil
}

func (d *fakeDirectory) RegisterEntity(_ context.Context, e *registry.Entity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entities[e.ID] = *e
	return nil
}

func (d *fakeDirectory) RemoveEntity(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entities[id]; !ok {
		return registry.ErrEntityNotFound
	}
	delete(d.entities, id)
	return nil
}

func (d *fakeDirectory) has(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entities[id]
	return ok
}

// recordingDispatcher records every call and fails on the configured
// entity ids.
type recordingDispatcher struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, entityID string, _ command.Service) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, entityID)
	if err := d.fail[entityID]; err != nil {
		return err
	}
	return nil
}

func (d *recordingDispatcher) called() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

type logEntry struct {
	level string
	msg   string
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg})
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

// kitchenBedroom builds two areas: Kitchen holds fan.k1 directly and
// fan.k2 through a device, Bedroom holds fan.b1.
func kitchenBedroom() (*fakeDirectory, *state.Store) {
	dir := newFakeDirectory()
	dir.addArea("kitchen", "Kitchen")
	dir.addArea("bedroom", "Bedroom")
	dir.addDevice("dev-k2", "kitchen")
	dir.addFan("fan.k1", "Kitchen Ceiling", "kitchen", "")
	dir.addFan("fan.k2", "Kitchen Extractor", "", "dev-k2")
	dir.addFan("fan.b1", "Bedroom Fan", "bedroom", "")

	store := state.NewStore()
	store.Set("fan.k1", state.On, nil)
	store.Set("fan.k2", state.Off, nil)
	store.Set("fan.b1", state.Off, nil)
	return dir, store
}

var errUnreachable = errors.New("device unreachable")

package aggregate

import (
	"context"
	"sort"
	"sync"
)

// Manager owns the current aggregate set.
//
// All methods are safe for concurrent use.
type Manager struct {
	deps Deps

	reloadMu sync.Mutex

	mu        sync.RWMutex
	entities  []Entity
	byID      map[string]Entity
	observers []Observer
}

// NewManager creates a Manager with an empty set.
func NewManager(deps Deps) *Manager {
	return &Manager{
		deps: deps,
		byID: make(map[string]Entity),
	}
}

// AddObserver registers fn for every snapshot published by any aggregate,
// including aggregates created by later reloads.
func (m *Manager) AddObserver(fn Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

func (m *Manager) publish(snap Snapshot) {
	m.mu.RLock()
	observers := append([]Observer(nil), m.observers...)
	m.mu.RUnlock()

	for _, fn := range observers {
		fn(snap)
	}
}

// Reload replaces the aggregate set with one built for excluded. The old
// set keeps running if the new one cannot be built. Directory entries of
// old aggregates the new set does not recreate are removed.
func (m *Manager) Reload(ctx context.Context, excluded []string) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	next, err := Setup(ctx, m.deps, excluded, m.publish)
	if err != nil {
		return err
	}

	nextByID := make(map[string]Entity, len(next))
	for _, e := range next {
		nextByID[e.Definition().EntityID] = e
	}

	m.mu.Lock()
	prev := m.entities
	m.entities = next
	m.byID = nextByID
	m.mu.Unlock()

	logger := m.deps.logger()
	for _, e := range prev {
		e.Detach()
		id := e.Definition().EntityID
		if _, kept := nextByID[id]; kept {
			continue
		}
		if err := removeStale(ctx, m.deps.Directory, id); err != nil {
			logger.Warn("failed to remove old aggregate", "entity_id", id, "error", err)
		}
	}

	for _, e := range next {
		e.Attach()
	}
	return nil
}

// Close detaches every aggregate. The set stays listed with its last
// state.
func (m *Manager) Close() {
	m.mu.RLock()
	entities := append([]Entity(nil), m.entities...)
	m.mu.RUnlock()

	for _, e := range entities {
		e.Detach()
	}
}

// List returns the current snapshot of every aggregate, ordered by entity id.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	entities := append([]Entity(nil), m.entities...)
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Get returns the snapshot of one aggregate or ErrNotFound.
func (m *Manager) Get(entityID string) (Snapshot, error) {
	e, err := m.lookup(entityID)
	if err != nil {
		return Snapshot{}, err
	}
	return e.Snapshot(), nil
}

// Recompute forces a rescan of one aggregate.
func (m *Manager) Recompute(entityID string) (Snapshot, error) {
	e, err := m.lookup(entityID)
	if err != nil {
		return Snapshot{}, err
	}
	return e.Recompute(), nil
}

// TurnOn runs Switch.TurnOn on the named switch. Member failures are not
// returned; see Switch.TurnOn.
func (m *Manager) TurnOn(ctx context.Context, entityID string) (Snapshot, error) {
	sw, err := m.lookupSwitch(entityID)
	if err != nil {
		return Snapshot{}, err
	}
	return sw.TurnOn(ctx), nil
}

// TurnOff runs Switch.TurnOff on the named switch.
func (m *Manager) TurnOff(ctx context.Context, entityID string) (Snapshot, error) {
	sw, err := m.lookupSwitch(entityID)
	if err != nil {
		return Snapshot{}, err
	}
	return sw.TurnOff(ctx), nil
}

func (m *Manager) lookup(entityID string) (Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byID[entityID]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (m *Manager) lookupSwitch(entityID string) (*Switch, error) {
	e, err := m.lookup(entityID)
	if err != nil {
		return nil, err
	}
	sw, ok := e.(*Switch)
	if !ok {
		return nil, ErrNotSwitch
	}
	return sw, nil
}

package state

import (
	"maps"
	"reflect"
	"sort"
	"sync"
	"time"
)

// Well-known state values.
const (
	On  = "on"
	Off = "off"
)

// State is the last reported state of one entity.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// IsOn reports whether the state value is exactly "on".
func (s *State) IsOn() bool {
	return s != nil && s.State == On
}

func (s State) clone() State {
	s.Attributes = maps.Clone(s.Attributes)
	return s
}

// Event describes one change. Old is nil for the first report of an entity.
type Event struct {
	EntityID string
	Old      *State
	New      State
}

// Listener is called after a change, outside the store lock.
type Listener func(Event)

// Reader is the read side of the store.
type Reader interface {
	Get(entityID string) (State, bool)
}

type listenerEntry struct {
	id int
	fn Listener
}

// Store is an in-memory state table with per-entity change listeners.
//
// All methods are safe for concurrent use.
type Store struct {
	now func() time.Time

	mu        sync.RWMutex
	states    map[string]State
	listeners map[string][]listenerEntry
	nextID    int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		now:       time.Now,
		states:    make(map[string]State),
		listeners: make(map[string][]listenerEntry),
	}
}

// Get returns the current state of entityID.
func (s *Store) Get(entityID string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[entityID]
	if !ok {
		return State{}, false
	}
	return st.clone(), true
}

// All returns every known state sorted by entity id.
func (s *Store) All() []State {
	s.mu.RLock()
	out := make([]State, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// Set records a state report. Listeners of entityID run only when the value
// or the attributes differ from the previous report; the return value says
// whether they did.
func (s *Store) Set(entityID, value string, attrs map[string]any) bool {
	now := s.now().UTC()

	s.mu.Lock()
	old, existed := s.states[entityID]
	if existed && old.State == value && attrsEqual(old.Attributes, attrs) {
		old.LastUpdated = now
		s.states[entityID] = old
		s.mu.Unlock()
		return false
	}

	next := State{
		EntityID:    entityID,
		State:       value,
		Attributes:  maps.Clone(attrs),
		LastChanged: now,
		LastUpdated: now,
	}
	if existed && old.State == value {
		next.LastChanged = old.LastChanged
	}
	s.states[entityID] = next

	entries := append([]listenerEntry(nil), s.listeners[entityID]...)
	s.mu.Unlock()

	ev := Event{EntityID: entityID, New: next.clone()}
	if existed {
		prev := old.clone()
		ev.Old = &prev
	}
	for _, e := range entries {
		e.fn(ev)
	}
	return true
}

// Remove forgets entityID. Listeners see an event whose New state is
// empty.
func (s *Store) Remove(entityID string) {
	s.mu.Lock()
	old, existed := s.states[entityID]
	delete(s.states, entityID)
	entries := append([]listenerEntry(nil), s.listeners[entityID]...)
	s.mu.Unlock()

	if !existed {
		return
	}
	prev := old.clone()
	ev := Event{EntityID: entityID, Old: &prev, New: State{EntityID: entityID}}
	for _, e := range entries {
		e.fn(ev)
	}
}

// Subscribe registers fn for changes of entityID and returns the function
// that cancels the registration. Cancelling twice is harmless.
func (s *Store) Subscribe(entityID string, fn Listener) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[entityID] = append(s.listeners[entityID], listenerEntry{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(entityID, id) })
	}
}

func (s *Store) unsubscribe(entityID string, id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.listeners[entityID]
	for i, e := range entries {
		if e.id == id {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(s.listeners, entityID)
		return
	}
	s.listeners[entityID] = entries
}

// ListenerCount returns the number of listeners registered for entityID.
func (s *Store) ListenerCount(entityID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners[entityID])
}

func attrsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

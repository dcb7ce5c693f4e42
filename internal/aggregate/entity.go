package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/area-fans/internal/command"
	"github.com/nerrad567/area-fans/internal/state"
)

// StateSource is the live state store as seen by an aggregate.
type StateSource interface {
	StateReader
	Subscribe(entityID string, fn state.Listener) (cancel func())
}

// Observer receives every snapshot an aggregate publishes. It is called
// outside the aggregate lock and must not block for long.
type Observer func(Snapshot)

// Attributes are the derived values reported alongside the on/off state.
type Attributes struct {
	Count        int      `json:"count"`
	Of           int      `json:"of"`
	CountOf      string   `json:"count_of"`
	FansOn       []string `json:"fans_on"`
	FansOff      []string `json:"fans_off"`
	ExcludedFans []string `json:"excluded_fans"`
}

// Snapshot is the externally visible state of one aggregate.
type Snapshot struct {
	EntityID   string     `json:"entity_id"`
	UniqueID   string     `json:"unique_id"`
	Name       string     `json:"name"`
	Kind       Kind       `json:"kind"`
	Area       string     `json:"area,omitempty"`
	State      string     `json:"state"`
	Icon       string     `json:"icon"`
	Members    []string   `json:"members"`
	Attributes Attributes `json:"attributes"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsOn reports whether the snapshot state is "on".
func (s Snapshot) IsOn() bool {
	return s.State == state.On
}

// Entity is one aggregate, sensor or switch.
type Entity interface {
	Definition() Definition
	Attach()
	Detach()
	Attached() bool
	Recompute() Snapshot
	Snapshot() Snapshot
}

// aggregator holds the state shared by sensors and switches.
type aggregator struct {
	def    Definition
	states StateSource
	notify Observer
	logger Logger

	// notifyMu orders compute and notify together, so observers see
	// snapshots in the order they were computed.
	notifyMu sync.Mutex

	mu        sync.Mutex
	summary   Summary
	on        bool
	updatedAt time.Time
	cancels   []func()
}

func newAggregator(def Definition, states StateSource, notify Observer, logger Logger) *aggregator {
	if logger == nil {
		logger = noopLogger{}
	}
	if notify == nil {
		notify = func(Snapshot) {}
	}
	a := &aggregator{
		def:    def,
		states: states,
		notify: notify,
		logger: logger,
	}
	a.summary = Summary{Total: len(def.Members), FansOn: []string{}, FansOff: append([]string{}, def.Members...)}
	return a
}

// Definition returns the fixed description of the aggregate.
func (a *aggregator) Definition() Definition {
	return a.def
}

// Attach subscribes to every member, then computes the initial state.
// Attaching an attached aggregate does nothing.
func (a *aggregator) Attach() {
	a.mu.Lock()
	if a.cancels != nil {
		a.mu.Unlock()
		return
	}
	a.cancels = make([]func(), 0, len(a.def.Members))
	for _, id := range a.def.Members {
		a.cancels = append(a.cancels, a.states.Subscribe(id, a.onMemberChange))
	}
	a.mu.Unlock()

	a.logger.Debug("aggregate attached", "entity_id", a.def.EntityID, "members", len(a.def.Members))
	a.Recompute()
}

// Detach releases every member subscription. It is safe to call more than
// once.
func (a *aggregator) Detach() {
	a.mu.Lock()
	cancels := a.cancels
	a.cancels = nil
	a.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if cancels != nil {
		a.logger.Debug("aggregate detached", "entity_id", a.def.EntityID)
	}
}

// Attached reports whether the aggregate currently follows its members.
func (a *aggregator) Attached() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancels != nil
}

func (a *aggregator) onMemberChange(state.Event) {
	a.Recompute()
}

// Recompute rescans every member and publishes the result.
func (a *aggregator) Recompute() Snapshot {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	a.mu.Lock()
	a.summary = Summarize(a.def.Members, a.states)
	a.on = a.summary.On
	a.updatedAt = time.Now().UTC()
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.notify(snap)
	return snap
}

// Snapshot returns the last computed state without rescanning.
func (a *aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// setFlag overrides the reported on/off flag until the next recompute.
func (a *aggregator) setFlag(on bool) {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	a.mu.Lock()
	a.on = on
	a.updatedAt = time.Now().UTC()
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.notify(snap)
}

func (a *aggregator) snapshotLocked() Snapshot {
	value, icon := state.Off, IconOff
	if a.on {
		value, icon = state.On, IconOn
	}
	return Snapshot{
		EntityID: a.def.EntityID,
		UniqueID: a.def.UniqueID,
		Name:     a.def.Name,
		Kind:     a.def.Kind,
		Area:     a.def.Area,
		State:    value,
		Icon:     icon,
		Members:  append([]string{}, a.def.Members...),
		Attributes: Attributes{
			Count:        a.summary.Count,
			Of:           a.summary.Total,
			CountOf:      a.summary.CountOf(),
			FansOn:       append([]string{}, a.summary.FansOn...),
			FansOff:      append([]string{}, a.summary.FansOff...),
			ExcludedFans: append([]string{}, a.def.Excluded...),
		},
		UpdatedAt: a.updatedAt,
	}
}

// Sensor is the read-only aggregate.
type Sensor struct {
	*aggregator
}

// NewSensor creates a detached sensor aggregate.
func NewSensor(def Definition, states StateSource, notify Observer, logger Logger) *Sensor {
	def.Kind = KindSensor
	return &Sensor{aggregator: newAggregator(def, states, notify, logger)}
}

// Switch is the aggregate that also commands its members.
type Switch struct {
	*aggregator
	dispatcher command.Dispatcher
}

// NewSwitch creates a detached switch aggregate.
func NewSwitch(def Definition, states StateSource, dispatcher command.Dispatcher, notify Observer, logger Logger) *Switch {
	def.Kind = KindSwitch
	return &Switch{
		aggregator: newAggregator(def, states, notify, logger),
		dispatcher: dispatcher,
	}
}

// TurnOn reports the switch as on straight away, then asks every member to
// turn on, one at a time in member order. The first failure is logged and
// ends the sequence; remaining members are not commanded. The state is
// always recomputed from the members afterwards, which corrects the early
// flag when needed.
func (s *Switch) TurnOn(ctx context.Context) Snapshot {
	return s.run(ctx, command.TurnOn, true)
}

// TurnOff is TurnOn in reverse.
func (s *Switch) TurnOff(ctx context.Context) Snapshot {
	return s.run(ctx, command.TurnOff, false)
}

func (s *Switch) run(ctx context.Context, service command.Service, flag bool) Snapshot {
	s.setFlag(flag)

	for _, id := range s.def.Members {
		if err := s.dispatcher.Dispatch(ctx, id, service); err != nil {
			s.logger.Error("fan command failed, remaining members skipped",
				"entity_id", s.def.EntityID,
				"name", s.def.Name,
				"member", id,
				"service", string(service),
				"error", err,
			)
			break
		}
	}

	return s.Recompute()
}

package aggregate

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/area-fans/internal/infrastructure/influxdb"
	"github.com/nerrad567/area-fans/internal/infrastructure/mqtt"
)

// JSONPublisher publishes a value as JSON; *mqtt.Client satisfies it.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// StatePublisher publishes aggregate snapshots, retained, to their state
// topics from its own goroutine. Snapshots queued while a publish is in
// flight are coalesced per aggregate, so only the latest state of each is
// sent. Observe never waits on the broker, which keeps it safe to call from
// MQTT message handlers.
type StatePublisher struct {
	pub    JSONPublisher
	topics mqtt.Topics
	logger Logger

	mu      sync.Mutex
	pending map[string]Snapshot
	order   []string
	wake    chan struct{}
}

// NewStatePublisher creates a publisher. Nothing is sent until Run starts.
func NewStatePublisher(pub JSONPublisher, topics mqtt.Topics, logger Logger) *StatePublisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &StatePublisher{
		pub:     pub,
		topics:  topics,
		logger:  logger,
		pending: make(map[string]Snapshot),
		wake:    make(chan struct{}, 1),
	}
}

// Observe queues snap, replacing any queued snapshot of the same aggregate.
// It is an Observer.
func (p *StatePublisher) Observe(snap Snapshot) {
	p.mu.Lock()
	if _, queued := p.pending[snap.EntityID]; !queued {
		p.order = append(p.order, snap.EntityID)
	}
	p.pending[snap.EntityID] = snap
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of aggregates waiting to be published.
func (p *StatePublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.order)
}

// Run publishes queued snapshots until ctx is cancelled, then publishes
// what is still queued and returns.
func (p *StatePublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case <-p.wake:
			p.drain()
		}
	}
}

func (p *StatePublisher) drain() {
	p.mu.Lock()
	order, pending := p.order, p.pending
	p.order, p.pending = nil, make(map[string]Snapshot)
	p.mu.Unlock()

	for _, id := range order {
		snap := pending[id]
		if err := p.pub.PublishJSON(p.topics.AggregateState(id), snap, true); err != nil {
			p.logger.Warn("failed to publish aggregate state", "entity_id", id, "error", err)
		}
	}
}

// PointWriter records aggregate points; *influxdb.Client satisfies it.
type PointWriter interface {
	WriteAggregate(p influxdb.AggregatePoint, at time.Time)
}

// RecordTo returns an Observer that writes each snapshot as a point.
func RecordTo(w PointWriter) Observer {
	return func(snap Snapshot) {
		at := snap.UpdatedAt
		if at.IsZero() {
			at = time.Now()
		}
		w.WriteAggregate(influxdb.AggregatePoint{
			EntityID: snap.EntityID,
			Area:     snap.Area,
			Kind:     string(snap.Kind),
			Count:    snap.Attributes.Count,
			Total:    snap.Attributes.Of,
			On:       snap.IsOn(),
		}, at)
	}
}

// Broadcaster fans a payload out to subscribers of a channel.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// ChannelStateChanged is the broadcast channel for aggregate snapshots.
const ChannelStateChanged = "aggregate.state_changed"

// BroadcastTo returns an Observer that broadcasts each snapshot.
func BroadcastTo(b Broadcaster) Observer {
	return func(snap Snapshot) {
		b.Broadcast(ChannelStateChanged, snap)
	}
}

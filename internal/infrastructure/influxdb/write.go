package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the service.
const (
	MeasurementAggregates = "fan_aggregates"
	MeasurementMembers    = "fan_members"
)

// AggregatePoint is one recomputed aggregate.
type AggregatePoint struct {
	EntityID string
	Area     string
	Kind     string
	Count    int
	Total    int
	On       bool
}

// WriteAggregate records how many member fans of an aggregate are on.
func (c *Client) WriteAggregate(p AggregatePoint, at time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementAggregates,
		map[string]string{
			"entity_id": p.EntityID,
			"area":      p.Area,
			"kind":      p.Kind,
		},
		map[string]interface{}{
			"count": p.Count,
			"total": p.Total,
			"on":    p.On,
		},
		at,
	))
}

// WriteMemberState records a member fan's reported state.
func (c *Client) WriteMemberState(entityID, state string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementMembers,
		map[string]string{"entity_id": entityID},
		map[string]interface{}{
			"state": state,
			"on":    state == "on",
		},
		at,
	))
}

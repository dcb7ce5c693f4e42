// Package command issues turn_on/turn_off requests to entities.
//
// The MQTT dispatcher publishes a JSON command per entity for the device
// side to act on. The local dispatcher writes the resulting state straight
// into the state store and is used in dev mode, where no broker exists.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/area-fans/internal/infrastructure/mqtt"
	"github.com/nerrad567/area-fans/internal/state"
)

// Service names a command.
type Service string

// Supported services.
const (
	TurnOn  Service = "turn_on"
	TurnOff Service = "turn_off"
)

// Valid reports whether s is a supported service.
func (s Service) Valid() bool {
	return s == TurnOn || s == TurnOff
}

// ErrInvalidService is returned for services other than turn_on/turn_off.
var ErrInvalidService = errors.New("command: invalid service")

// Dispatcher sends one command to one entity.
type Dispatcher interface {
	Dispatch(ctx context.Context, entityID string, service Service) error
}

// Message is the JSON payload published on <prefix>/command/<entity_id>.
type Message struct {
	EntityID  string  `json:"entity_id"`
	Service   Service `json:"service"`
	Timestamp string  `json:"timestamp"`
}

// Publisher is the part of the MQTT client the dispatcher needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTDispatcher publishes commands over MQTT. Publish blocks until the
// broker acknowledges or the client's publish timeout expires.
type MQTTDispatcher struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
	now    func() time.Time
}

// NewMQTTDispatcher creates a dispatcher publishing through pub.
func NewMQTTDispatcher(pub Publisher, topics mqtt.Topics, qos byte) *MQTTDispatcher {
	return &MQTTDispatcher{pub: pub, topics: topics, qos: qos, now: time.Now}
}

// Dispatch publishes a non-retained command for entityID.
func (d *MQTTDispatcher) Dispatch(ctx context.Context, entityID string, service Service) error {
	if err := check(ctx, service); err != nil {
		return err
	}

	payload, err := json.Marshal(Message{
		EntityID:  entityID,
		Service:   service,
		Timestamp: d.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	if err := d.pub.Publish(d.topics.Command(entityID), payload, d.qos, false); err != nil {
		return fmt.Errorf("%s %s: %w", service, entityID, err)
	}
	return nil
}

// StateWriter is the write side of the state store.
type StateWriter interface {
	Set(entityID, value string, attrs map[string]any) bool
}

// LocalDispatcher applies commands directly to the state store, as if the
// device had acknowledged immediately.
type LocalDispatcher struct {
	store StateWriter
}

// NewLocalDispatcher creates a dispatcher writing to store.
func NewLocalDispatcher(store StateWriter) *LocalDispatcher {
	return &LocalDispatcher{store: store}
}

// Dispatch sets entityID to "on" or "off".
func (d *LocalDispatcher) Dispatch(ctx context.Context, entityID string, service Service) error {
	if err := check(ctx, service); err != nil {
		return err
	}
	value := state.Off
	if service == TurnOn {
		value = state.On
	}
	d.store.Set(entityID, value, nil)
	return nil
}

func check(ctx context.Context, service Service) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !service.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidService, service)
	}
	return nil
}

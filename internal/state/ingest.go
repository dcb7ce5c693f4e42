package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/area-fans/internal/infrastructure/mqtt"
)

// ErrInvalidPayload is returned for state messages that cannot be parsed.
var ErrInvalidPayload = errors.New("state: invalid payload")

// Subscriber is the part of the MQTT client the Ingestor needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Logger is the logging interface used by the Ingestor.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Recorder receives every accepted member state, e.g. for telemetry.
type Recorder func(entityID, state string, at time.Time)

// Ingestor feeds state reports from <prefix>/state/<entity_id> into a Store.
type Ingestor struct {
	store    *Store
	topics   mqtt.Topics
	logger   Logger
	recorder Recorder
}

// NewIngestor creates an Ingestor writing to store.
func NewIngestor(store *Store, topics mqtt.Topics) *Ingestor {
	return &Ingestor{store: store, topics: topics, logger: noopLogger{}}
}

// SetLogger sets the logger.
func (in *Ingestor) SetLogger(logger Logger) {
	in.logger = logger
}

// SetRecorder sets a hook called for every accepted report.
func (in *Ingestor) SetRecorder(r Recorder) {
	in.recorder = r
}

// Start subscribes to every entity state topic.
func (in *Ingestor) Start(sub Subscriber, qos byte) error {
	topic := in.topics.AllStates()
	if err := sub.Subscribe(topic, qos, in.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	return nil
}

// HandleMessage is the MQTT handler for state topics.
func (in *Ingestor) HandleMessage(topic string, payload []byte) error {
	entityID, ok := in.topics.EntityFromState(topic)
	if !ok {
		in.logger.Debug("ignoring message on unexpected topic", "topic", topic)
		return nil
	}

	value, attrs, err := ParsePayload(payload)
	if err != nil {
		return fmt.Errorf("entity %s: %w", entityID, err)
	}

	changed := in.store.Set(entityID, value, attrs)
	in.logger.Debug("state report", "entity_id", entityID, "state", value, "changed", changed)

	if in.recorder != nil {
		in.recorder(entityID, value, time.Now().UTC())
	}
	return nil
}

// statePayload is the JSON form of a report.
type statePayload struct {
	State      *string        `json:"state"`
	Attributes map[string]any `json:"attributes"`
}

// ParsePayload accepts a bare value ("on", "OFF", "unavailable") or a JSON
// object {"state": "...", "attributes": {...}}. ON/OFF are normalised to
// lower case; other values are kept verbatim.
func ParsePayload(payload []byte) (value string, attrs map[string]any, err error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return "", nil, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	if trimmed[0] == '{' {
		var msg statePayload
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if msg.State == nil {
			return "", nil, fmt.Errorf("%w: missing state", ErrInvalidPayload)
		}
		return normalise(*msg.State), msg.Attributes, nil
	}

	return normalise(string(trimmed)), nil, nil
}

func normalise(v string) string {
	switch strings.ToLower(v) {
	case On:
		return On
	case Off:
		return Off
	}
	return v
}

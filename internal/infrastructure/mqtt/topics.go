package mqtt

import "strings"

// DefaultTopicPrefix is the root of every topic when none is configured.
const DefaultTopicPrefix = "areafans"

// Topics builds the service's topic names under a common prefix.
//
//	t := mqtt.NewTopics("areafans")
//	t.State("fan.k1")             // areafans/state/fan.k1
//	t.Command("fan.k1")           // areafans/command/fan.k1
//	t.AggregateState("switch.x")  // areafans/aggregate/switch.x/state
type Topics struct {
	prefix string
}

// NewTopics returns a topic builder rooted at prefix. Surrounding slashes
// are trimmed; an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root segment.
func (t Topics) Prefix() string {
	return t.root()
}

func (t Topics) root() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// State is where devices report the live state of one entity.
func (t Topics) State(entityID string) string {
	return t.root() + "/state/" + entityID
}

// AllStates matches every entity state topic.
func (t Topics) AllStates() string {
	return t.root() + "/state/+"
}

// Command is where turn_on/turn_off requests for one entity are published.
func (t Topics) Command(entityID string) string {
	return t.root() + "/command/" + entityID
}

// AggregateState carries the retained snapshot of one aggregate entity.
func (t Topics) AggregateState(entityID string) string {
	return t.root() + "/aggregate/" + entityID + "/state"
}

// SystemStatus carries the online/offline status of the service.
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}

// EntityFromState extracts the entity id from a State topic.
func (t Topics) EntityFromState(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, t.root()+"/state/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// Package state is the live state store for entities.
//
// The store keeps the last reported state of every entity and notifies
// per-entity listeners when it changes. Member fans report over MQTT; the
// Ingestor turns those messages into Set calls. Aggregates read the store
// and subscribe to their members.
package state

package api

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/area-fans/internal/aggregate"
	"github.com/nerrad567/area-fans/internal/infrastructure/config"
	"github.com/nerrad567/area-fans/internal/infrastructure/logging"
)

// ChannelEntryUpdated carries the configuration entry after the flow
// created or changed it, and a removal notice when it is deleted.
const ChannelEntryUpdated = "config.entry_updated"

// knownChannels are the channels clients may subscribe to.
var knownChannels = []string{aggregate.ChannelStateChanged, ChannelEntryUpdated}

// ReplayFunc returns the events a client receives right after it
// subscribes to channel, so it starts from the current state.
type ReplayFunc func(channel string) []any

// Hub tracks WebSocket clients and fans events out to their subscriptions.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	replay  ReplayFunc
	mu      sync.RWMutex
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// SetReplay sets the function that supplies current state to new
// subscribers.
func (h *Hub) SetReplay(fn ReplayFunc) {
	h.mu.Lock()
	h.replay = fn
	h.mu.Unlock()
}

func (h *Hub) replayFor(channel string) []any {
	h.mu.RLock()
	fn := h.replay
	h.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(channel)
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for client := range clients {
		client.close()
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client from the hub and closes it.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	client.close()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// Broadcast sends an event to every client subscribed to channel. Aggregate
// snapshots are also matched against a client's entity filter.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := eventMessage(channel, payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}
	entityID := eventEntity(payload)

	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if client.wants(channel, entityID) && client.trySend(data) {
			sent++
		}
	}
	if sent > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "entity_id", entityID, "recipients", sent)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// eventEntity returns the entity an event is about, or "" for events that
// are not entity scoped.
func eventEntity(payload any) string {
	switch p := payload.(type) {
	case aggregate.Snapshot:
		return p.EntityID
	case *aggregate.Snapshot:
		return p.EntityID
	}
	return ""
}

func eventMessage(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
}

func isKnownChannel(channel string) bool {
	return slices.Contains(knownChannels, channel)
}

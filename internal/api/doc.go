// Package api implements the HTTP REST API and WebSocket server of the
// area fans service.
//
// This package provides:
//   - REST endpoints for the area, device and entity directories
//   - state reads and writes for member entities
//   - aggregate snapshots and the turn_on/turn_off commands
//   - the setup and options configuration flow
//   - a WebSocket hub broadcasting "aggregate.state_changed" events
//
// # Security
//
// When security.jwt.secret is set, every route except /health requires an
// HS256 bearer token. WebSocket clients may pass the token as the "token"
// query parameter. With no secret the API is open, which suits a local
// install behind the host firewall.
//
// # Graceful Degradation
//
// The server operates without MQTT; aggregate commands then only work in
// dev mode, where they are applied to the local state store.
package api

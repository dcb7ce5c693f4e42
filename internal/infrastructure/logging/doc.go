// Package logging provides structured logging for the Area Fans service.
//
// It wraps log/slog so every record carries the same default attributes
// (service, version). JSON output is the default; text output is meant for
// local development.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("aggregate").Info("aggregates created", "count", n)
//
// Never log secrets such as MQTT passwords or JWT signing keys.
package logging

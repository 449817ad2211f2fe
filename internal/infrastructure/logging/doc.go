// Package logging provides structured logging for the cloudlink agent.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across every component.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Security
//
// Never log the private key, bearer tokens or CA material. Log token
// expiry times and key lengths instead.
package logging

// Package api implements the local diagnostics HTTP server.
//
// Endpoints:
//   - GET /healthz  liveness; 503 once the broker session has failed
//   - GET /status   identity, session state, saved setpoints and runtime stats
//   - GET /metrics  Prometheus exposition of the agent's collectors
//
// The server binds to localhost by default and carries no authentication.
// It never exposes credentials.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

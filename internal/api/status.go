package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-cloudlink/internal/session"
)

// bytesPerMB converts bytes to megabytes.
const bytesPerMB = 1024 * 1024

// unsetSetpoint is reported for a mode that has never been saved.
const unsetSetpoint = -1

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	DeviceID      string             `json:"device_id"`
	ClientID      string             `json:"client_id"`
	Session       SessionInfo        `json:"session"`
	Setpoints     map[string]float32 `json:"setpoints"`
	Runtime       RuntimeMetrics     `json:"runtime"`
}

// SessionInfo describes the broker session.
type SessionInfo struct {
	State          string `json:"state"`
	Broker         string `json:"broker"`
	ConnectedSince string `json:"connected_since,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// handleHealth returns 200 while the agent can operate. It returns 503 once
// the broker session has failed or while a storage dependency is unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.session.State()
	if state == session.StateFailed {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "failed",
			"session": state.String(),
		})
		return
	}

	checks := make(map[string]string, len(s.checks))
	healthy := true
	for name, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := c.HealthCheck(ctx)
		cancel()
		if err != nil {
			healthy = false
			checks[name] = err.Error()
			s.logger.Error("health check failed", "component", name, "error", err)
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{
		"status":  "ok",
		"session": state.String(),
		"version": s.version,
		"checks":  checks,
	}
	if !healthy {
		body["status"] = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// handleStatus reports identity, session state and saved setpoints. Modes
// never saved are reported as -1.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	now := time.Now()

	resp := StatusResponse{
		Timestamp:     now.UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(now.Sub(s.started).Seconds()),
		DeviceID:      s.deviceID,
		ClientID:      s.clientID,
		Session: SessionInfo{
			State:  s.session.State().String(),
			Broker: s.broker,
		},
		Setpoints: make(map[string]float32),
	}
	if since := s.session.ConnectedSince(); !since.IsZero() {
		resp.Session.ConnectedSince = since.UTC().Format(time.RFC3339)
	}
	for _, r := range s.setpoints.Snapshot() {
		if r.Set {
			resp.Setpoints[r.Mode.String()] = r.Value
		} else {
			resp.Setpoints[r.Mode.String()] = unsetSetpoint
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	resp.Runtime = RuntimeMetrics{
		Goroutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(mem.Alloc) / bytesPerMB,
		NumGC:         mem.NumGC,
	}

	writeJSON(w, http.StatusOK, resp)
}

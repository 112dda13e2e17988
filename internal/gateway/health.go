package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/doublev/bff-gateway/internal/backend"
	"github.com/doublev/bff-gateway/internal/config"
	"github.com/doublev/bff-gateway/internal/monitoring"
	"github.com/doublev/bff-gateway/internal/store"
	"github.com/doublev/bff-gateway/internal/targets"
)

// Probe states reported by /health/detailed.
const (
	probeConnected    = "connected"
	probeDisconnected = "disconnected"
)

// ServiceHealth is the probe result for one backend.
type ServiceHealth struct {
	Status         string `json:"status"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	HTTPStatus     int    `json:"http_status,omitempty"`
	Error          string `json:"error,omitempty"`
}

// DetailedHealth is the /health/detailed payload.
type DetailedHealth struct {
	Status    string                   `json:"status"`
	Service   string                   `json:"service"`
	Version   string                   `json:"version"`
	Timestamp string                   `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services"`
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth returns gateway liveness without touching the backends.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   ServiceName,
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleDetailedHealth probes both backends concurrently. Any disconnected
// backend makes the gateway degraded (503).
func (g *Gateway) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	probes := map[string]string{
		string(targets.ServiceContent):   g.registry.BaseURL(targets.ServiceContent) + targets.ContentAPIPrefix,
		string(targets.ServiceAnalytics): g.registry.BaseURL(targets.ServiceAnalytics) + targets.AnalyticsHealthPath,
	}

	health := DetailedHealth{
		Status:    "healthy",
		Service:   ServiceName,
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]ServiceHealth, len(probes)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, probeURL := range probes {
		wg.Add(1)
		go func(name, probeURL string) {
			defer wg.Done()
			result := g.probeBackend(r.Context(), probeURL)
			mu.Lock()
			health.Services[name] = result
			mu.Unlock()
		}(name, probeURL)
	}
	wg.Wait()

	status := http.StatusOK
	for name, s := range health.Services {
		if s.Status != probeConnected {
			health.Status = "degraded"
			status = http.StatusServiceUnavailable
			log.Warn().Str("service", name).Str("error", s.Error).Msg("backend probe failed")
		}
	}
	writeJSON(w, status, health)
}

// probeBackend reports a backend as connected when it answers with any
// status below 500.
func (g *Gateway) probeBackend(ctx context.Context, probeURL string) ServiceHealth {
	start := time.Now()
	raw, err := g.probe.Do(ctx, &backend.Request{
		Method:    http.MethodGet,
		URL:       probeURL,
		RequestID: monitoring.RequestIDFromContext(ctx),
	})
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return ServiceHealth{Status: probeDisconnected, Error: err.Error()}
	}
	if raw.StatusCode >= http.StatusInternalServerError {
		return ServiceHealth{Status: probeDisconnected, ResponseTimeMs: elapsed, HTTPStatus: raw.StatusCode, Error: raw.StatusText}
	}
	return ServiceHealth{Status: probeConnected, ResponseTimeMs: elapsed, HTTPStatus: raw.StatusCode}
}

// handleEnv reports which configuration variables are set, with secrets masked.
func (g *Gateway) handleEnv(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.EnvStatus(g.envDir))
}

// handleReconcileStatus returns the most recent permission reconciliation run.
func (g *Gateway) handleReconcileStatus(w http.ResponseWriter, r *http.Request) {
	if g.runs == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	run, err := g.runs.Latest(r.Context())
	switch {
	case errors.Is(err, store.ErrNoRuns):
		writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "last_run": nil})
	case err != nil:
		log.Error().Err(err).Msg("failed to read reconciliation ledger")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read reconciliation ledger"})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "last_run": run})
	}
}

// handleStats returns operational counters.
// Restricted to localhost to prevent external access to operational metrics.
func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(stateFrom(r.Context()).peer) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}
	writeJSON(w, http.StatusOK, g.metrics.FullStats())
}

// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for operational metrics:
//   - requests/successes: Total and successful request counts
//   - outcomes:           One counter per normalize.Outcome
//   - backends:           Calls, transport errors and latency per service
//   - rate_limited:       Requests rejected with 429
//
// All counters are atomics; the maps are built once and never written after.
package monitoring

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/doublev/bff-gateway/internal/normalize"
	"github.com/doublev/bff-gateway/internal/targets"
)

type backendCounters struct {
	calls     atomic.Int64
	errors    atomic.Int64
	latencyMs atomic.Int64
}

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	startedAt time.Time

	requests    atomic.Int64
	successes   atomic.Int64
	rateLimited atomic.Int64

	outcomes map[normalize.Outcome]*atomic.Int64
	backends map[targets.Service]*backendCounters
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{
		startedAt: time.Now(),
		outcomes:  make(map[normalize.Outcome]*atomic.Int64, len(normalize.Outcomes)),
		backends: map[targets.Service]*backendCounters{
			targets.ServiceContent:   {},
			targets.ServiceAnalytics: {},
		},
	}
	for _, o := range normalize.Outcomes {
		mc.outcomes[o] = new(atomic.Int64)
	}
	return mc
}

// RecordRequest records a finished request and its outcome.
func (mc *MetricsCollector) RecordRequest(outcome normalize.Outcome) {
	mc.requests.Add(1)
	if outcome == normalize.OutcomeSuccess || outcome == normalize.OutcomeEmptyFallback {
		mc.successes.Add(1)
	}
	if c, ok := mc.outcomes[outcome]; ok {
		c.Add(1)
	}
}

// RecordBackendCall records one outbound call. transportErr marks calls
// that produced no HTTP response.
func (mc *MetricsCollector) RecordBackendCall(svc targets.Service, latency time.Duration, transportErr bool) {
	c, ok := mc.backends[svc]
	if !ok {
		return
	}
	c.calls.Add(1)
	c.latencyMs.Add(latency.Milliseconds())
	if transportErr {
		c.errors.Add(1)
	}
}

// RecordRateLimited records a request rejected by the rate limiter.
func (mc *MetricsCollector) RecordRateLimited() { mc.rateLimited.Add(1) }

// StartedAt returns when the metrics collector was created.
func (mc *MetricsCollector) StartedAt() time.Time { return mc.startedAt }

// Stats returns current metrics as a flat map.
func (mc *MetricsCollector) Stats() map[string]int64 {
	out := map[string]int64{
		"requests":     mc.requests.Load(),
		"successes":    mc.successes.Load(),
		"rate_limited": mc.rateLimited.Load(),
	}
	for o, c := range mc.outcomes {
		out["outcome_"+string(o)] = c.Load()
	}
	return out
}

// FullStats returns all metrics in a structured format for the /stats endpoint.
func (mc *MetricsCollector) FullStats() StatsResponse {
	uptime := time.Since(mc.startedAt)
	requests := mc.requests.Load()
	successes := mc.successes.Load()

	outcomes := make(map[string]int64, len(mc.outcomes))
	for o, c := range mc.outcomes {
		outcomes[string(o)] = c.Load()
	}

	backends := make(map[string]BackendStats, len(mc.backends))
	for svc, c := range mc.backends {
		calls := c.calls.Load()
		var avg float64
		if calls > 0 {
			avg = float64(c.latencyMs.Load()) / float64(calls)
		}
		backends[string(svc)] = BackendStats{
			Calls:           calls,
			TransportErrors: c.errors.Load(),
			AvgLatencyMs:    avg,
		}
	}

	return StatsResponse{
		Uptime:        formatDuration(uptime),
		UptimeSeconds: int64(uptime.Seconds()),
		StartedAt:     mc.startedAt.Format(time.RFC3339),
		Requests: RequestStats{
			Total:       requests,
			Successful:  successes,
			Failed:      requests - successes,
			RateLimited: mc.rateLimited.Load(),
		},
		Outcomes: outcomes,
		Backends: backends,
	}
}

// StatsResponse is the structured response for the /stats endpoint.
type StatsResponse struct {
	Uptime        string                  `json:"uptime"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	StartedAt     string                  `json:"started_at"`
	Requests      RequestStats            `json:"requests"`
	Outcomes      map[string]int64        `json:"outcomes"`
	Backends      map[string]BackendStats `json:"backends"`
}

// RequestStats holds request count metrics.
type RequestStats struct {
	Total       int64 `json:"total"`
	Successful  int64 `json:"successful"`
	Failed      int64 `json:"failed"`
	RateLimited int64 `json:"rate_limited"`
}

// BackendStats holds per-service outbound call metrics.
type BackendStats struct {
	Calls           int64   `json:"calls"`
	TransportErrors int64   `json:"transport_errors"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

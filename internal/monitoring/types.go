// Package monitoring - types.go defines shared types.
//
// DESIGN: These types are used by both gateway/ and monitoring/ packages.
// Defined here ONCE to avoid duplication and circular imports.
//
// TYPES:
//   - RequestEvent:  Telemetry data for each proxied request
//   - InitEvent:     Configuration snapshot written once at startup
//   - Config types:  TelemetryConfig, LoggerConfig
package monitoring

import "time"

// =============================================================================
// EVENT TYPES - Structured data for telemetry recording
// =============================================================================

// RequestEvent captures one request through the gateway.
type RequestEvent struct {
	RequestID        string    `json:"request_id"`
	Timestamp        time.Time `json:"timestamp"`
	Method           string    `json:"method"`
	Path             string    `json:"path"`
	ClientIP         string    `json:"client_ip"`
	Service          string    `json:"service,omitempty"` // content, analytics
	Target           string    `json:"target,omitempty"`
	RouteKind        string    `json:"route_kind,omitempty"`
	AuthScheme       string    `json:"auth_scheme"` // bearer, other, none
	RequestBodySize  int       `json:"request_body_size"`
	ResponseBodySize int       `json:"response_body_size"`
	BackendStatus    int       `json:"backend_status,omitempty"`
	StatusCode       int       `json:"status_code"`
	Outcome          string    `json:"outcome"`
	Error            string    `json:"error,omitempty"`
	BackendLatencyMs int64     `json:"backend_latency_ms"`
	TotalLatencyMs   int64     `json:"total_latency_ms"`
}

// InitEvent captures the effective configuration when the gateway starts.
// Secrets are reported only as presence flags.
type InitEvent struct {
	Timestamp         time.Time `json:"timestamp"`
	Event             string    `json:"event"`
	Env               string    `json:"env"`
	ServerPort        int       `json:"server_port"`
	ContentURL        string    `json:"content_url"`
	AnalyticsURL      string    `json:"analytics_url"`
	ContentTargets    int       `json:"content_targets"`
	AnalyticsTargets  int       `json:"analytics_targets"`
	CORSOrigins       []string  `json:"cors_origins"`
	RateLimitEnabled  bool      `json:"rate_limit_enabled"`
	RateLimitBackend  string    `json:"rate_limit_backend,omitempty"` // memory, redis
	RateLimitMax      int       `json:"rate_limit_max"`
	RateLimitWindowMs int64     `json:"rate_limit_window_ms"`
	ReconcileEnabled  bool      `json:"reconcile_enabled"`
	ReconcileRoles    []string  `json:"reconcile_roles,omitempty"`
	HasAdminToken     bool      `json:"has_admin_token"`
	AdminTokenEnvLike bool      `json:"admin_token_env_like"`
	TelemetryPath     string    `json:"telemetry_path,omitempty"`
	LedgerPath        string    `json:"ledger_path,omitempty"`
}

// =============================================================================
// CONFIG TYPES
// =============================================================================

// TelemetryConfig contains telemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	LogPath     string `yaml:"log_path"`
	LogToStdout bool   `yaml:"log_to_stdout"`
}

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, or file path
}

// Package config - defaults.go centralizes magic numbers and default values.
//
// DESIGN: All default values that appear in multiple places should be defined here.
// This makes configuration more maintainable and auditable.
package config

import "time"

// =============================================================================
// SERVER DEFAULTS
// =============================================================================

// DefaultPort is the port the gateway listens on when PORT is unset.
const DefaultPort = 4000

// DefaultReadTimeout bounds how long the server waits for a request.
const DefaultReadTimeout = 30 * time.Second

// DefaultWriteTimeout bounds a full request/response cycle, including the
// single outbound backend call.
const DefaultWriteTimeout = 60 * time.Second

// DefaultShutdownTimeout is how long in-flight requests get to finish on SIGTERM.
const DefaultShutdownTimeout = 15 * time.Second

// MaxRequestBodySize is the maximum allowed inbound JSON body (10MB).
const MaxRequestBodySize = 10 * 1024 * 1024

// =============================================================================
// BACKEND DEFAULTS
// =============================================================================

// DefaultContentURL is the content service base URL (without /api).
const DefaultContentURL = "http://localhost:1337"

// DefaultAnalyticsURL is the analytics service base URL.
const DefaultAnalyticsURL = "http://localhost:8000"

// DefaultBackendTimeout is the outbound call timeout for both services.
const DefaultBackendTimeout = 30 * time.Second

// DefaultProbeTimeout is used by /health/detailed for backend reachability.
const DefaultProbeTimeout = 5 * time.Second

// MaxResponseSize is the maximum allowed backend response body (50MB).
const MaxResponseSize = 50 * 1024 * 1024

// MaxErrorBodyLogLen limits error response body in logs to prevent bloat.
const MaxErrorBodyLogLen = 500

// =============================================================================
// ANALYTICS QUERY DEFAULTS
// =============================================================================

// DefaultCurrency is sent to forecast endpoints when the caller omits it.
const DefaultCurrency = "THB"

// DefaultWaterfallGroupBy is the variance waterfall grouping when omitted.
const DefaultWaterfallGroupBy = "deal"

// DefaultSimulationIterations is the Monte Carlo iteration count when omitted.
const DefaultSimulationIterations = 10000

// DefaultConfidenceLevels are the Monte Carlo percentiles when omitted.
var DefaultConfidenceLevels = []float64{0.5, 0.8, 0.95}

// =============================================================================
// RATE LIMITING
// =============================================================================

// DefaultRateLimitWindow is the fixed window length.
const DefaultRateLimitWindow = 15 * time.Minute

// DefaultRateLimitMaxRequests is requests per client per window.
const DefaultRateLimitMaxRequests = 1000

// DefaultRateLimitKeyPrefix namespaces limiter counters in a shared Redis.
const DefaultRateLimitKeyPrefix = "bff:rl:"

// =============================================================================
// PERMISSION RECONCILIATION
// =============================================================================

// DefaultReconcileAttempts bounds admin API calls per lookup (first try included).
const DefaultReconcileAttempts = 3

// DefaultReconcileBackoff is the first retry delay; doubles per attempt.
const DefaultReconcileBackoff = 500 * time.Millisecond

// MaxReconcileBackoff caps the exponential backoff.
const MaxReconcileBackoff = 10 * time.Second

// DefaultReconcileTimeout bounds the whole startup reconciliation run.
const DefaultReconcileTimeout = 2 * time.Minute

// DefaultReconcileRoles are the role types whose permissions are reconciled.
var DefaultReconcileRoles = []string{"public", "authenticated"}

// =============================================================================
// MONITORING
// =============================================================================

// DefaultLogLevel is the zerolog level name.
const DefaultLogLevel = "info"

// DefaultLogFormat selects JSON logs; "console" selects human-readable output.
const DefaultLogFormat = "json"

// Package config loads gateway configuration.
//
// DESIGN: Three layers, later wins:
//   - Defaults():          values from defaults.go
//   - YAML file:           optional, ${VAR:-default} references expanded first
//   - Environment:         PORT, STRAPI_URL, PREDICTIVE_SERVICE_URL, ...
//
// .env.local and .env are loaded by LoadEnvFiles() before Load() runs.
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level gateway configuration.
type Config struct {
	Env         string           `yaml:"env"`
	TargetsPath string           `yaml:"targets_path"`
	Server      ServerConfig     `yaml:"server"`
	Content     BackendConfig    `yaml:"content"`
	Analytics   BackendConfig    `yaml:"analytics"`
	CORS        CORSConfig       `yaml:"cors"`
	RateLimit   RateLimitConfig  `yaml:"rate_limit"`
	Reconcile   ReconcileConfig  `yaml:"reconcile"`
	Monitoring  MonitoringConfig `yaml:"monitoring"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	// TrustProxy honours X-Forwarded-For / X-Real-IP for the client address.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`
}

// BackendConfig locates one backend service.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// CORSConfig is the browser origin allowlist.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// RateLimitConfig configures per-client request limiting.
// RedisURL switches from the in-process limiter to a shared Redis counter.
type RateLimitConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max_requests"`
	RedisURL    string        `yaml:"redis_url"`
	KeyPrefix   string        `yaml:"key_prefix"`
}

// ReconcileConfig configures the startup permission reconciliation.
type ReconcileConfig struct {
	Enabled     bool          `yaml:"enabled"`
	AdminToken  string        `yaml:"admin_token"`
	Roles       []string      `yaml:"roles"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	Timeout     time.Duration `yaml:"timeout"`
	LedgerPath  string        `yaml:"ledger_path"`
}

// MonitoringConfig configures logging and request telemetry.
type MonitoringConfig struct {
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	TelemetryPath string `yaml:"telemetry_path"`
}

// IsProduction reports whether the gateway runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Defaults returns a configuration populated from defaults.go.
func Defaults() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxBodyBytes:    MaxRequestBodySize,
		},
		Content:   BackendConfig{URL: DefaultContentURL, Timeout: DefaultBackendTimeout},
		Analytics: BackendConfig{URL: DefaultAnalyticsURL, Timeout: DefaultBackendTimeout},
		CORS:      CORSConfig{Origins: []string{"http://localhost:3000"}},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Window:      DefaultRateLimitWindow,
			MaxRequests: DefaultRateLimitMaxRequests,
			KeyPrefix:   DefaultRateLimitKeyPrefix,
		},
		Reconcile: ReconcileConfig{
			Enabled:     true,
			Roles:       append([]string(nil), DefaultReconcileRoles...),
			MaxAttempts: DefaultReconcileAttempts,
			BaseBackoff: DefaultReconcileBackoff,
			Timeout:     DefaultReconcileTimeout,
		},
		Monitoring: MonitoringConfig{
			LogLevel:  DefaultLogLevel,
			LogFormat: DefaultLogFormat,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path,
// and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		// #nosec G304 -- operator-supplied config path
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Content.URL = NormalizeContentURL(cfg.Content.URL)
	cfg.Analytics.URL = strings.TrimRight(cfg.Analytics.URL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse expands environment references in data and decodes it over cfg.
func Parse(data []byte, cfg *Config) error {
	expanded := ExpandEnvWithDefaults(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

var envRefPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvWithDefaults replaces ${VAR} and ${VAR:-default} with environment values.
// Unset variables without a default expand to the empty string.
func ExpandEnvWithDefaults(s string) string {
	return envRefPattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRefPattern.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok && v != "" {
			return v
		}
		return m[2]
	})
}

// NormalizeContentURL trims trailing slashes and a trailing /api segment;
// the gateway appends /api itself.
func NormalizeContentURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	u = strings.TrimSuffix(u, "/api")
	return strings.TrimRight(u, "/")
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRUST_PROXY %q: %w", v, err)
		}
		cfg.Server.TrustProxy = trust
	}
	if v := firstEnv("STRAPI_URL", "NEXT_PUBLIC_STRAPI_URL"); v != "" {
		cfg.Content.URL = v
	}
	if v := firstEnv("PREDICTIVE_SERVICE_URL", "NEXT_PUBLIC_PREDICTIVE_SERVICE_URL"); v != "" {
		cfg.Analytics.URL = strings.TrimSuffix(strings.TrimRight(v, "/"), "/api/v1")
	}
	if v := os.Getenv("STRAPI_ADMIN_TOKEN"); v != "" {
		cfg.Reconcile.AdminToken = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORS.Origins = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Monitoring.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Monitoring.LogFormat = v
	}
	if v := os.Getenv("TELEMETRY_PATH"); v != "" {
		cfg.Monitoring.TelemetryPath = v
	}
	if v := os.Getenv("TARGETS_PATH"); v != "" {
		cfg.TargetsPath = v
	}
	if v := os.Getenv("LEDGER_PATH"); v != "" {
		cfg.Reconcile.LedgerPath = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RateLimit.RedisURL = v
	}
	if v := os.Getenv("RATE_LIMIT_WINDOW_MS"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_WINDOW_MS %q: %w", v, err)
		}
		cfg.RateLimit.Window = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("RATE_LIMIT_MAX_REQUESTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_MAX_REQUESTS %q: %w", v, err)
		}
		cfg.RateLimit.MaxRequests = n
	}
	return nil
}

// Validate checks the configuration for values the gateway cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if err := validateURL("content.url", c.Content.URL); err != nil {
		return err
	}
	if err := validateURL("analytics.url", c.Analytics.URL); err != nil {
		return err
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate_limit.window must be positive")
		}
		if c.RateLimit.MaxRequests <= 0 {
			return fmt.Errorf("rate_limit.max_requests must be positive")
		}
	}
	if c.Reconcile.MaxAttempts < 1 {
		return fmt.Errorf("reconcile.max_attempts must be at least 1")
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: scheme must be http or https, got %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host in %q", field, raw)
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

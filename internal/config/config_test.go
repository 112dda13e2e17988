package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultContentURL, cfg.Content.URL)
	assert.Equal(t, DefaultAnalyticsURL, cfg.Analytics.URL)
	assert.Equal(t, DefaultReconcileRoles, cfg.Reconcile.Roles)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoad_YAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_CONTENT_HOST", "cms.internal")

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	yaml := `
env: staging
server:
  port: 9090
  read_timeout: 5s
content:
  url: http://${TEST_CONTENT_HOST}:1337/api/
analytics:
  url: ${TEST_ANALYTICS_URL:-http://analytics:8000}
  timeout: 2s
rate_limit:
  enabled: true
  window: 1m
  max_requests: 50
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "http://cms.internal:1337", cfg.Content.URL)
	assert.Equal(t, "http://analytics:8000", cfg.Analytics.URL)
	assert.Equal(t, 2*time.Second, cfg.Analytics.Timeout)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 50, cfg.RateLimit.MaxRequests)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultWriteTimeout, cfg.Server.WriteTimeout)
	assert.Equal(t, DefaultRateLimitKeyPrefix, cfg.RateLimit.KeyPrefix)
	assert.False(t, cfg.Server.TrustProxy)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "4100")
	t.Setenv("STRAPI_URL", "https://cms.example.com/api")
	t.Setenv("PREDICTIVE_SERVICE_URL", "https://predict.example.com/api/v1")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,")
	t.Setenv("RATE_LIMIT_WINDOW_MS", "60000")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "10")
	t.Setenv("STRAPI_ADMIN_TOKEN", "admin-token-value")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4100, cfg.Server.Port)
	assert.Equal(t, "https://cms.example.com", cfg.Content.URL)
	assert.Equal(t, "https://predict.example.com", cfg.Analytics.URL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.Origins)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "admin-token-value", cfg.Reconcile.AdminToken)
	assert.True(t, cfg.Server.TrustProxy)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric port", map[string]string{"PORT": "abc"}},
		{"bad content scheme", map[string]string{"STRAPI_URL": "ftp://cms"}},
		{"bad window", map[string]string{"RATE_LIMIT_WINDOW_MS": "soon"}},
		{"zero max requests", map[string]string{"RATE_LIMIT_MAX_REQUESTS": "0"}},
		{"bad trust proxy", map[string]string{"TRUST_PROXY": "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestNormalizeContentURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"http://localhost:1337", "http://localhost:1337"},
		{"http://localhost:1337/", "http://localhost:1337"},
		{"http://localhost:1337/api", "http://localhost:1337"},
		{"http://localhost:1337/api/", "http://localhost:1337"},
		{" https://cms.example.com/api ", "https://cms.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeContentURL(tt.input))
		})
	}
}

func TestExpandEnvWithDefaults(t *testing.T) {
	t.Setenv("EXPAND_SET", "value")

	assert.Equal(t, "value", ExpandEnvWithDefaults("${EXPAND_SET}"))
	assert.Equal(t, "value", ExpandEnvWithDefaults("${EXPAND_SET:-fallback}"))
	assert.Equal(t, "fallback", ExpandEnvWithDefaults("${EXPAND_UNSET:-fallback}"))
	assert.Equal(t, "", ExpandEnvWithDefaults("${EXPAND_UNSET}"))
	assert.Equal(t, "a-value-b", ExpandEnvWithDefaults("a-${EXPAND_SET}-b"))
}

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/doublev/bff-gateway/internal/utils"
)

// EnvFiles are loaded in order; a variable already set is never overwritten,
// so .env.local takes priority over .env and the process environment over both.
var EnvFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads EnvFiles from dir and returns the ones that were found.
func LoadEnvFiles(dir string) []string {
	var loaded []string
	for _, name := range EnvFiles {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			loaded = append(loaded, name)
		}
	}
	return loaded
}

// SafeEnvVars are reported by /health/env.
var SafeEnvVars = []string{
	"PORT",
	"APP_ENV",
	"STRAPI_URL",
	"STRAPI_ADMIN_TOKEN",
	"PREDICTIVE_SERVICE_URL",
	"CORS_ORIGINS",
	"LOG_LEVEL",
	"RATE_LIMIT_WINDOW_MS",
	"RATE_LIMIT_MAX_REQUESTS",
	"REDIS_URL",
	"TRUST_PROXY",
}

// EnvVar is the reported state of one variable.
type EnvVar struct {
	Set    bool   `json:"set"`
	Value  string `json:"value,omitempty"`
	Length int    `json:"length,omitempty"`
}

// EnvReport is the /health/env payload.
type EnvReport struct {
	Loaded    bool              `json:"loaded"`
	Source    string            `json:"source"`
	Variables map[string]EnvVar `json:"variables"`
	Missing   []string          `json:"missing"`
	Warnings  []string          `json:"warnings"`
}

// EnvStatus reports which SafeEnvVars are set, masking secrets.
// dir is where .env files are looked up.
func EnvStatus(dir string) EnvReport {
	report := EnvReport{
		Loaded:    true,
		Variables: make(map[string]EnvVar, len(SafeEnvVars)),
		Missing:   []string{},
		Warnings:  []string{},
	}

	for _, name := range SafeEnvVars {
		value := os.Getenv(name)
		if value == "" {
			report.Variables[name] = EnvVar{Set: false}
			report.Missing = append(report.Missing, name)
			continue
		}
		report.Variables[name] = EnvVar{
			Set:    true,
			Value:  displayEnvValue(name, value),
			Length: len(value),
		}
	}

	report.Source = "system/environment only"
	for _, name := range EnvFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			report.Source = name
			break
		}
	}
	if report.Source == "system/environment only" {
		report.Warnings = append(report.Warnings, "No .env.local or .env file found")
	}

	if os.Getenv("STRAPI_URL") == "" {
		report.Warnings = append(report.Warnings, "STRAPI_URL not set - using default")
	}
	if os.Getenv("PREDICTIVE_SERVICE_URL") == "" {
		report.Warnings = append(report.Warnings, "PREDICTIVE_SERVICE_URL not set - using default")
	}
	if len(report.Missing) > 0 {
		report.Loaded = false
	}
	return report
}

func displayEnvValue(name, value string) string {
	upper := strings.ToUpper(name)
	for _, marker := range []string{"SECRET", "TOKEN", "PASSWORD", "KEY"} {
		if strings.Contains(upper, marker) {
			return utils.MaskKey(value)
		}
	}
	if len(value) > 100 {
		return value[:50] + "... (truncated)"
	}
	return value
}

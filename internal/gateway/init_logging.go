package gateway

import (
	"strings"
	"time"

	"github.com/doublev/bff-gateway/internal/config"
	"github.com/doublev/bff-gateway/internal/monitoring"
	"github.com/doublev/bff-gateway/internal/targets"
)

func buildInitEvent(cfg *config.Config, registry *targets.Registry) *monitoring.InitEvent {
	ev := &monitoring.InitEvent{
		Timestamp:         time.Now(),
		Event:             "gateway_init",
		Env:               cfg.Env,
		ServerPort:        cfg.Server.Port,
		ContentURL:        registry.BaseURL(targets.ServiceContent),
		AnalyticsURL:      registry.BaseURL(targets.ServiceAnalytics),
		CORSOrigins:       append([]string(nil), cfg.CORS.Origins...),
		RateLimitEnabled:  cfg.RateLimit.Enabled,
		RateLimitMax:      cfg.RateLimit.MaxRequests,
		RateLimitWindowMs: cfg.RateLimit.Window.Milliseconds(),
		ReconcileEnabled:  cfg.Reconcile.Enabled,
		ReconcileRoles:    append([]string(nil), cfg.Reconcile.Roles...),
		HasAdminToken:     strings.TrimSpace(cfg.Reconcile.AdminToken) != "",
		AdminTokenEnvLike: strings.Contains(cfg.Reconcile.AdminToken, "${"),
		TelemetryPath:     cfg.Monitoring.TelemetryPath,
		LedgerPath:        cfg.Reconcile.LedgerPath,
	}

	if cfg.RateLimit.Enabled {
		ev.RateLimitBackend = "memory"
		if cfg.RateLimit.RedisURL != "" {
			ev.RateLimitBackend = "redis"
		}
	}

	for _, t := range registry.All() {
		switch t.Service {
		case targets.ServiceContent:
			ev.ContentTargets++
		case targets.ServiceAnalytics:
			ev.AnalyticsTargets++
		}
	}
	return ev
}

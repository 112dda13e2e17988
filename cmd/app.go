package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/doublev/bff-gateway/internal/backend"
	"github.com/doublev/bff-gateway/internal/config"
	"github.com/doublev/bff-gateway/internal/monitoring"
	"github.com/doublev/bff-gateway/internal/ratelimit"
	"github.com/doublev/bff-gateway/internal/reconcile"
	"github.com/doublev/bff-gateway/internal/targets"
)

// app is the loaded configuration shared by the subcommands.
type app struct {
	cfg      *config.Config
	registry *targets.Registry
	logs     io.Closer
}

// loadApp loads .env files, the config, logging and the target registry.
func loadApp(opts *rootOptions) (*app, error) {
	envFiles := config.LoadEnvFiles(opts.envDir)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Monitoring.LogLevel = opts.logLevel
	}

	logs, err := monitoring.SetupLogging(monitoring.LoggerConfig{
		Level:  cfg.Monitoring.LogLevel,
		Format: cfg.Monitoring.LogFormat,
		Output: "stderr",
	})
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	if len(envFiles) > 0 {
		log.Debug().Strs("files", envFiles).Str("dir", opts.envDir).Msg("loaded env files")
	}

	registry := targets.Default(cfg.Content.URL, cfg.Analytics.URL)
	if cfg.TargetsPath != "" {
		n, err := registry.LoadOverridesFile(cfg.TargetsPath)
		if err != nil {
			_ = logs.Close()
			return nil, err
		}
		log.Info().Int("targets", n).Str("path", cfg.TargetsPath).Msg("loaded target overrides")
	}

	return &app{cfg: cfg, registry: registry, logs: logs}, nil
}

func (a *app) Close() error {
	return a.logs.Close()
}

// reconcilePermissions runs one permission reconciliation against the
// content service. rec may be nil.
func (a *app) reconcilePermissions(ctx context.Context, rec reconcile.Recorder) reconcile.Report {
	rc := a.cfg.Reconcile
	admin := reconcile.NewHTTPAdmin(
		backend.NewClient(backend.WithTimeout(a.cfg.Content.Timeout)),
		a.registry.BaseURL(targets.ServiceContent),
		rc.AdminToken,
	)

	opts := []reconcile.Option{
		reconcile.WithRoles(rc.Roles...),
		reconcile.WithRetryPolicy(reconcile.RetryPolicy{
			MaxAttempts: rc.MaxAttempts,
			BaseBackoff: rc.BaseBackoff,
			MaxBackoff:  config.MaxReconcileBackoff,
		}),
	}
	if rec != nil {
		opts = append(opts, reconcile.WithRecorder(rec))
	}

	if rc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.Timeout)
		defer cancel()
	}
	return reconcile.New(admin, a.registry.ContentUIDs(), opts...).Run(ctx)
}

// newLimiter builds the configured rate limiter. The returned closer
// releases the Redis connection when one is used.
func (a *app) newLimiter() (ratelimit.Limiter, io.Closer, error) {
	rl := a.cfg.RateLimit
	if !rl.Enabled {
		return nil, noopCloser{}, nil
	}
	if rl.RedisURL == "" {
		return ratelimit.NewInMemory(rl.Window), noopCloser{}, nil
	}
	limiter, err := ratelimit.NewRedisFromURL(rl.RedisURL, rl.Window, ratelimit.WithKeyPrefix(rl.KeyPrefix))
	if err != nil {
		return nil, nil, err
	}
	return limiter, limiter, nil
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }

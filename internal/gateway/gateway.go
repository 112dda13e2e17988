// Package gateway is the dashboard-facing HTTP surface.
//
// DESIGN: Every backend-facing route is a Route{Kind, Service, Target}. A single
// proxy path resolves the target, forwards the caller's credential, builds the
// outbound query, performs one backend call and writes the normalized envelope.
//
// FLOW:
//  1. Middleware: request id, real IP, recover, logging, CORS, security headers,
//     rate limit, body limit
//  2. Route handler parses params and assembles a backend.Request
//  3. backend.Client.Do performs exactly one call
//  4. normalize.Normalize shapes the reply as {data} or {error}
//  5. Metrics and telemetry record the outcome
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/doublev/bff-gateway/internal/backend"
	"github.com/doublev/bff-gateway/internal/config"
	"github.com/doublev/bff-gateway/internal/monitoring"
	"github.com/doublev/bff-gateway/internal/ratelimit"
	"github.com/doublev/bff-gateway/internal/store"
	"github.com/doublev/bff-gateway/internal/targets"
)

// Service name reported by the health endpoints.
const (
	ServiceName = "bff-gateway"
	Version     = "1.0.0"
)

// RunSource returns the latest reconciliation run for /health/reconcile.
type RunSource interface {
	Latest(ctx context.Context) (*store.Run, error)
}

// Gateway holds the collaborators shared by all handlers. Everything is
// read-only after New returns except the counters and the limiter.
type Gateway struct {
	cfg      *config.Config
	registry *targets.Registry
	clients  map[targets.Service]*backend.Client
	probe    *backend.Client
	limiter  ratelimit.Limiter
	metrics  *monitoring.MetricsCollector
	tracker  *monitoring.Tracker
	runs     RunSource
	envDir   string

	server *http.Server
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClient replaces the backend client used for proxied calls to both services.
func WithClient(c *backend.Client) Option {
	return func(g *Gateway) {
		g.clients[targets.ServiceContent] = c
		g.clients[targets.ServiceAnalytics] = c
	}
}

// WithProbeClient replaces the client used by /health/detailed.
func WithProbeClient(c *backend.Client) Option {
	return func(g *Gateway) { g.probe = c }
}

// WithLimiter enables rate limiting with l.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

// WithTracker records one telemetry event per proxied request.
func WithTracker(t *monitoring.Tracker) Option {
	return func(g *Gateway) { g.tracker = t }
}

// WithRunSource exposes reconciliation history on /health/reconcile.
func WithRunSource(s RunSource) Option {
	return func(g *Gateway) { g.runs = s }
}

// WithEnvDir sets where /health/env looks for .env files.
func WithEnvDir(dir string) Option {
	return func(g *Gateway) { g.envDir = dir }
}

// New creates a gateway for the given configuration and target registry.
func New(cfg *config.Config, registry *targets.Registry, opts ...Option) *Gateway {
	g := &Gateway{
		cfg:      cfg,
		registry: registry,
		clients:  make(map[targets.Service]*backend.Client, 2),
		metrics:  monitoring.NewMetricsCollector(),
		envDir:   ".",
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.clients[targets.ServiceContent] == nil {
		g.clients[targets.ServiceContent] = backend.NewClient(backend.WithTimeout(cfg.Content.Timeout))
	}
	if g.clients[targets.ServiceAnalytics] == nil {
		g.clients[targets.ServiceAnalytics] = backend.NewClient(backend.WithTimeout(cfg.Analytics.Timeout))
	}
	if g.probe == nil {
		g.probe = backend.NewClient(backend.WithTimeout(config.DefaultProbeTimeout))
	}
	g.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           g.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return g
}

// Metrics returns the gateway's counters.
func (g *Gateway) Metrics() *monitoring.MetricsCollector {
	return g.metrics
}

// Start listens on the configured port and blocks until the server stops.
func (g *Gateway) Start() error {
	g.tracker.RecordInit(buildInitEvent(g.cfg, g.registry))

	log.Info().
		Int("port", g.cfg.Server.Port).
		Str("env", g.cfg.Env).
		Str("content_url", g.registry.BaseURL(targets.ServiceContent)).
		Str("analytics_url", g.registry.BaseURL(targets.ServiceAnalytics)).
		Strs("cors_origins", g.cfg.CORS.Origins).
		Msg("gateway listening")

	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and flushes telemetry.
func (g *Gateway) Shutdown(ctx context.Context) error {
	err := g.server.Shutdown(ctx)
	if g.tracker != nil {
		_ = g.tracker.Close()
	}
	return err
}

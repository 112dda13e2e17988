package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/doublev/bff-gateway/internal/gateway"
	"github.com/doublev/bff-gateway/internal/monitoring"
	"github.com/doublev/bff-gateway/internal/reconcile"
	"github.com/doublev/bff-gateway/internal/store"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP server",
		Long: "Reconciles public read permissions on the content service (when an admin token\n" +
			"is configured), then serves the dashboard API until SIGINT or SIGTERM.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, port)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides PORT and the config file)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, port int) error {
	a, err := loadApp(opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	if port > 0 {
		a.cfg.Server.Port = port
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledgerPath := a.cfg.Reconcile.LedgerPath
	if ledgerPath == "" {
		ledgerPath = ":memory:"
	}
	ledger, err := store.OpenLedger(ledgerPath)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	switch {
	case !a.cfg.Reconcile.Enabled:
		log.Info().Msg("permission reconciliation disabled")
	case a.cfg.Reconcile.AdminToken == "":
		log.Warn().Msg("STRAPI_ADMIN_TOKEN not set, skipping permission reconciliation")
	default:
		logReport(a.reconcilePermissions(ctx, ledger))
	}

	limiter, limiterCloser, err := a.newLimiter()
	if err != nil {
		return err
	}
	defer func() { _ = limiterCloser.Close() }()

	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled: a.cfg.Monitoring.TelemetryPath != "",
		LogPath: a.cfg.Monitoring.TelemetryPath,
	})
	if err != nil {
		return err
	}

	gw := gateway.New(a.cfg, a.registry,
		gateway.WithLimiter(limiter),
		gateway.WithTracker(tracker),
		gateway.WithRunSource(ledger),
		gateway.WithEnvDir(opts.envDir),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return errors.New("gateway stopped unexpectedly")
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("gateway shutdown error")
		return err
	}
	return nil
}

// logReport logs a reconciliation summary. Failures never stop startup.
func logReport(report reconcile.Report) {
	created, enabled, unchanged, failed := report.Totals()
	ev := log.Info()
	if failed > 0 || report.Aborted != "" {
		ev = log.Warn()
	}
	if report.Aborted != "" {
		ev = ev.Str("aborted", report.Aborted)
	}
	ev.Int("created", created).
		Int("enabled", enabled).
		Int("unchanged", unchanged).
		Int("failed", failed).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("permission reconciliation finished")
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/doublev/bff-gateway/internal/reconcile"
	"github.com/doublev/bff-gateway/internal/store"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Grant public read permissions on the content service once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if a.cfg.Reconcile.AdminToken == "" {
				return errors.New("STRAPI_ADMIN_TOKEN is not set")
			}

			var rec reconcile.Recorder
			if a.cfg.Reconcile.LedgerPath != "" {
				ledger, err := store.OpenLedger(a.cfg.Reconcile.LedgerPath)
				if err != nil {
					return err
				}
				defer func() { _ = ledger.Close() }()
				rec = ledger
			}

			p := newPrinter(cmd.OutOrStdout())
			p.header("Permission reconciliation")
			p.step(fmt.Sprintf("Reconciling %d content types for roles %v", len(a.registry.ContentUIDs()), a.cfg.Reconcile.Roles))

			report := a.reconcilePermissions(cmd.Context(), rec)
			return printReport(p, report)
		},
	}
}

// printReport writes one line per role and returns an error when the run
// was aborted or any pair failed.
func printReport(p *printer, report reconcile.Report) error {
	for _, rr := range report.Roles {
		if rr.Skipped {
			p.warn(fmt.Sprintf("%s: skipped (%s)", rr.Role, rr.SkipReason))
			continue
		}
		line := fmt.Sprintf("%s: %d created, %d enabled, %d unchanged, %d failed",
			rr.Role, rr.Created, rr.Enabled, rr.Unchanged, rr.Failed)
		if rr.Failed > 0 {
			p.error(line)
		} else {
			p.success(line)
		}
	}

	created, enabled, unchanged, failed := report.Totals()
	p.info(fmt.Sprintf("total: %d created, %d enabled, %d unchanged, %d failed in %s",
		created, enabled, unchanged, failed, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)))

	switch {
	case report.Aborted != "":
		p.error("aborted: " + report.Aborted)
		return fmt.Errorf("reconciliation aborted: %s", report.Aborted)
	case failed > 0:
		return fmt.Errorf("reconciliation finished with %d failures", failed)
	}
	return nil
}

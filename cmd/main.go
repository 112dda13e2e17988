// BFF gateway - aggregation layer between the dashboard and its backends.
//
// Usage:
//
//	bff-gateway serve [--config FILE] [--port N]
//	bff-gateway reconcile
//	bff-gateway targets
//	bff-gateway version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doublev/bff-gateway/internal/gateway"
)

// Version is set at build time via ldflags.
var Version = gateway.Version

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	envDir     string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "bff-gateway",
		Short:         "Backend-for-frontend gateway for the dashboard",
		Long:          "bff-gateway fronts the content service and the analytics service behind one origin,\nforwarding the caller's credential and normalizing every response into a JSON envelope.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "gateway config file (YAML)")
	root.PersistentFlags().StringVar(&opts.envDir, "env-dir", ".", "directory holding .env.local and .env")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newServeCmd(opts),
		newReconcileCmd(opts),
		newTargetsCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", gateway.ServiceName, Version)
		},
	}
}

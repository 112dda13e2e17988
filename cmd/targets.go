package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/doublev/bff-gateway/internal/gateway"
)

func newTargetsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List every gateway route and the backend URL it reaches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			routes := gateway.New(a.cfg, a.registry).Routes()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "METHOD\tROUTE\tKIND\tSERVICE\tBACKEND")
			for _, r := range routes {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Method, r.Pattern, r.Kind, r.Service, r.Backend)
			}
			return tw.Flush()
		},
	}
}

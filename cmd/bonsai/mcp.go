package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	bonsaimcp "github.com/rendis/bonsai/pkg/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the session over MCP (stdio)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			var history bonsaimcp.RunHistory
			if a.journal != nil {
				history = a.journal
			}
			srv := bonsaimcp.NewServer(bonsaimcp.Deps{
				Session:  a.session,
				Hub:      a.hub,
				History:  history,
				Dialects: a.sandbox,
				Version:  version,
				Logger:   a.logger,
			})
			if a.refresher != nil {
				if err := a.refresher.Start(ctx); err != nil {
					return err
				}
			}
			return srv.Serve(ctx)
		},
	}
	addGraphFlags(cmd)
	return cmd
}

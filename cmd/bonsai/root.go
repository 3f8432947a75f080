package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bonsai",
		Short: "bonsai - live evaluation of input, code and output node graphs",
		Long: `bonsai evaluates a graph of input, code and output nodes and re-runs it
whenever the graph or its sources change.

Commands:
  serve     Start the live preview server
  mcp       Serve the session over MCP (stdio)
  run       Evaluate a graph once and print the outputs
  diagram   Render a graph as Mermaid, ASCII or PNG
  version   Print the version

Use "bonsai [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	registerConfigFlags(root.PersistentFlags())

	root.AddCommand(newServeCmd())
	root.AddCommand(newMCPCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newDiagramCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// resolveConfig builds the effective configuration for cmd.
func resolveConfig(cmd *cobra.Command) (Config, error) {
	fs := cmd.Flags()
	path, _ := fs.GetString("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return cfg, err
	}
	applyFlags(fs, &cfg)
	return cfg, nil
}

// buildApp resolves configuration and wires the components for cmd.
func buildApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	graphPath, _ := cmd.Flags().GetString("graph")
	sourcesPath, _ := cmd.Flags().GetString("sources")
	return newApp(ctx, cfg, appInput{
		graphPath:   graphPath,
		sourcesPath: sourcesPath,
		logOut:      cmd.ErrOrStderr(),
	})
}

func addGraphFlags(cmd *cobra.Command) {
	cmd.Flags().String("graph", "", "graph JSON file (default: the built-in seed graph)")
	cmd.Flags().String("sources", "", "JSON file of source values keyed by input name")
}

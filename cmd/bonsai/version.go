package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/bonsai/internal/sandbox"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=v1.0.0" ./cmd/bonsai/
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "bonsai %s (library %s)\n", version, sandbox.LibraryVersion)
			return err
		},
	}
}

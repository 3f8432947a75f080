package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/bonsai/internal/diagram"
	"github.com/rendis/bonsai/internal/editor"
	"github.com/rendis/bonsai/internal/evaluator"
)

func newDiagramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagram",
		Short: "Render a graph as Mermaid, ASCII or PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.close()

			format, _ := cmd.Flags().GetString("format")
			title, _ := cmd.Flags().GetString("title")
			outPath, _ := cmd.Flags().GetString("out")

			var res *evaluator.Result
			if overlay, _ := cmd.Flags().GetBool("evaluate"); overlay {
				res = a.session.EvaluateNow(cmd.Context(), editor.TriggerManual)
			}

			model := diagram.Build(title, a.session.State().Graph, res)
			body, _, err := diagram.Render(cmd.Context(), format, model)
			if err != nil {
				return err
			}
			if outPath != "" {
				return os.WriteFile(outPath, body, 0o644)
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
	addGraphFlags(cmd)
	cmd.Flags().String("format", diagram.FormatASCII, "output format: mermaid, ascii, png")
	cmd.Flags().String("title", "", "diagram title")
	cmd.Flags().String("out", "", "write to file instead of stdout")
	cmd.Flags().Bool("evaluate", false, "evaluate first and overlay results")
	return cmd
}

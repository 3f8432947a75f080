package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/bonsai/internal/editor"
	"github.com/rendis/bonsai/internal/evaluator"
)

type runOutput struct {
	Outputs     map[string]any `json:"outputs"`
	Errors      any            `json:"errors,omitempty"`
	FailedNodes []string       `json:"failed_nodes,omitempty"`
	Visited     int            `json:"visited"`
	DurationMS  int64          `json:"duration_ms"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate a graph once and print the outputs as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.close()

			res := a.session.EvaluateNow(cmd.Context(), editor.TriggerManual)
			if err := writeResult(cmd, res); err != nil {
				return err
			}
			if strict, _ := cmd.Flags().GetBool("strict"); strict && !res.OK() {
				return fmt.Errorf("%d node(s) failed: %v", len(res.Errors), res.FailedNodes())
			}
			return nil
		},
	}
	addGraphFlags(cmd)
	cmd.Flags().Bool("strict", false, "exit non-zero when any node fails")
	return cmd
}

func writeResult(cmd *cobra.Command, res *evaluator.Result) error {
	out := runOutput{
		Outputs:     res.Outputs,
		FailedNodes: res.FailedNodes(),
		Visited:     res.Visited,
		DurationMS:  res.Duration.Milliseconds(),
	}
	if len(res.Errors) > 0 {
		out.Errors = res.Errors
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

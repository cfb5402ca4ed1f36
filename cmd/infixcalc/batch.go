package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/infixcalc/pkg/batch"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch FILE...",
		Short: "Run YAML/JSON batch files of expressions",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBatch,
	}
	cmd.Flags().Int("workers", 0, "Expressions evaluated at once (default GOMAXPROCS)")
	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	logger := loggerFor(cmd)
	out := cmd.OutOrStdout()
	workers, _ := cmd.Flags().GetInt("workers")

	failed := 0
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		b, err := batch.Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		results, err := batch.Run(cmd.Context(), b, workers)
		if err != nil {
			return err
		}

		if len(args) > 1 {
			fmt.Fprintf(out, "# %s\n", path)
		}
		for _, r := range results {
			fmt.Fprintln(out, formatResult(r))
			if r.Failed() {
				failed++
			}
		}
		logger.Debug().Str("file", path).Int("expressions", len(results)).Msg("batch evaluated")
	}

	if failed > 0 {
		return fmt.Errorf("%d expressions failed", failed)
	}
	return nil
}

func formatResult(r batch.Result) string {
	line := r.Entry.ID + " = "
	if r.Err != nil {
		line += r.Err.Error()
	} else {
		line += r.Result
	}
	if r.Matched != nil && !*r.Matched {
		line += fmt.Sprintf(" (expected %s)", r.Entry.Expect)
	}
	return line
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lemonberrylabs/infixcalc/pkg/expr"
)

func newEvalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval [expression...]",
		Short: "Evaluate expressions given as arguments or read from stdin",
		Long: `Evaluate each expression and print its result, rounded to two decimal
places. Failed expressions print their error in place of a result.

With no arguments, expressions are read from stdin one per line.`,
		RunE: runEval,
	}
}

func runEval(cmd *cobra.Command, args []string) error {
	logger := loggerFor(cmd)
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		failed := 0
		for _, a := range args {
			if !evalLine(out, a) {
				failed++
			}
		}
		logger.Debug().Int("expressions", len(args)).Int("failed", failed).Msg("evaluated arguments")
		return failures(failed, len(args))
	}

	in := cmd.InOrStdin()
	interactive := isTerminal(in)
	prompt := func() {
		if interactive {
			fmt.Fprint(out, "> ")
		}
	}

	failed, total := 0, 0
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, expr.MaxExpressionLength), 1024*1024)
	prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			total++
			if !evalLine(out, line) {
				failed++
			}
		}
		prompt()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	if interactive {
		fmt.Fprintln(out)
		return nil
	}

	logger.Debug().Int("expressions", total).Int("failed", failed).Msg("evaluated stdin")
	return failures(failed, total)
}

// evalLine prints the result of one expression and reports success.
func evalLine(w io.Writer, expression string) bool {
	res, err := expr.Evaluate(expression)
	if err != nil {
		fmt.Fprintln(w, err.Error())
		return false
	}
	fmt.Fprintln(w, res)
	return true
}

func failures(failed, total int) error {
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d expressions failed", failed, total)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

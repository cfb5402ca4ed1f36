// Package main is the entry point for the infixcalc CLI and server.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "infixcalc",
		Short:         "Evaluate infix arithmetic expressions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = version + " (commit=" + commit + ", built=" + date + ")"
	root.SetVersionTemplate("infixcalc version {{.Version}}\n")

	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default info, env LOG_LEVEL)")

	root.AddCommand(newEvalCmd(), newBatchCmd(), newServeCmd())
	return root
}

// loggerFor builds the command's logger from --log-level or LOG_LEVEL.
// Logs go to stderr so results on stdout stay machine readable.
func loggerFor(cmd *cobra.Command) zerolog.Logger {
	return newLogger(cmd.ErrOrStderr(), logLevel(cmd))
}

func logLevel(cmd *cobra.Command) string {
	level := envOrDefault("LOG_LEVEL", "info")
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		level = v
	}
	return level
}

func newLogger(w io.Writer, levelName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w}).
		With().Timestamp().Str("service", "infixcalc").Logger().
		Level(level)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

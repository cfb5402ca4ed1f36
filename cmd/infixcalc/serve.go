package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/infixcalc/pkg/api"
	grpcapi "github.com/lemonberrylabs/infixcalc/pkg/api/grpc"
	"github.com/lemonberrylabs/infixcalc/pkg/store"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST and gRPC APIs",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "HTTP server port (default 8787, env PORT)")
	cmd.Flags().Int("grpc-port", 0, "gRPC server port (default 8788, env GRPC_PORT)")
	cmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	cmd.Flags().String("batches-dir", "", "Directory of batch YAML/JSON files to load on startup (env BATCHES_DIR)")
	cmd.Flags().Int("workers", 0, "Expressions of a batch evaluated at once (default GOMAXPROCS)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := loggerFor(cmd)

	port := envOrDefault("PORT", "8787")
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		port = fmt.Sprintf("%d", v)
	}

	grpcPort := envOrDefault("GRPC_PORT", "8788")
	if v, _ := cmd.Flags().GetInt("grpc-port"); v != 0 {
		grpcPort = fmt.Sprintf("%d", v)
	}

	host := envOrDefault("HOST", "0.0.0.0")
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		host = v
	}

	batchesDir := os.Getenv("BATCHES_DIR")
	if v, _ := cmd.Flags().GetString("batches-dir"); v != "" {
		batchesDir = v
	}

	workers, _ := cmd.Flags().GetInt("workers")

	addr := fmt.Sprintf("%s:%s", host, port)
	grpcAddr := fmt.Sprintf("%s:%s", host, grpcPort)

	s := store.New()
	server := api.New(s, logger)
	server.SetWorkers(workers)

	if batchesDir != "" {
		if err := server.LoadDir(batchesDir); err != nil {
			logger.Warn().Err(err).Str("dir", batchesDir).Msg("failed to load batches directory")
		}
	}

	grpcServer := grpcapi.New(s, logger)
	go func() {
		logger.Info().Str("addr", grpcAddr).Msg("gRPC server listening")
		if err := grpcServer.Serve(grpcAddr); err != nil {
			logger.Fatal().Err(err).Msg("gRPC server error")
		}
	}()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info().Msg("shutting down")
		grpcServer.GracefulStop()
		if err := server.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("error during shutdown")
		}
	}()

	logger.Info().
		Str("addr", addr).
		Str("version", version).
		Str("commit", commit).
		Msg("infixcalc listening")
	return server.Listen(addr)
}

/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fittrack/apiserver/config"
	"github.com/fittrack/apiserver/internal/logging"
	"github.com/fittrack/apiserver/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var shutdownTimeout time.Duration

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the fittrack backend server",
	Long: `Starts the fittrack backend server. Usage:

	fittrack server
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		log, err := logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServer(ctx, cfg, log, shutdownTimeout)
	},
}

// runServer serves until ctx is done, then shuts down within timeout.
func runServer(ctx context.Context, cfg config.Config, log *zap.Logger, timeout time.Duration) error {
	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to start server", zap.Error(err))
		return fmt.Errorf("start server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
			_ = srv.Shutdown(context.Background())
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", timeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil {
		log.Error("server error", zap.Error(err))
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "time allowed for in-flight requests to finish")
}

/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kekarecall/apiserver/config"
	"github.com/kekarecall/apiserver/internal/logging"
	"github.com/kekarecall/apiserver/internal/server"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the kekarecall backend server",
	Long: `Starts the kekarecall backend server. Usage:

	kekarecall server
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log, os.Stderr)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runServer(ctx, cfg, logger); err != nil {
			stop()
			os.Exit(1)
		}
	},
}

// runServer serves until ctx is cancelled. Failures are logged before being
// returned.
func runServer(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start server", "error", err)
		return err
	}
	logger.Info("starting server", "auth_mode", cfg.AuthMode, "sqlite", cfg.Database.UsesSQLite())
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
		logger.Error("server error", "error", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ryshoes/storefront/internal/server"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the storefront backend server",
	Long: `Starts the storefront backend server. Usage:

	storefront server
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, logger := setup()

		srv, err := server.New(cmd.Context(), cfg, logger)
		if err != nil {
			logger.WithError(err).Error("failed to start server")
			os.Exit(1)
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-stop
			logger.Info("shutting down")
			if err := srv.Shutdown(); err != nil {
				logger.WithError(err).Warn("graceful shutdown failed")
			}
		}()

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

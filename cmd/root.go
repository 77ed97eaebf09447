/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/ryshoes/storefront/config"
	"github.com/ryshoes/storefront/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Second-hand goods storefront backend",
	Long: `Storefront serves the catalog, checkout and admin back-office APIs.

	storefront server
	storefront migrate up
	storefront seed admin`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config and installs the configured logger as the standard
// logger so package level logrus calls share its format.
func setup() (config.Config, *logrus.Logger) {
	cfg := config.LoadConfig()
	logger := logging.New(cfg)
	logrus.SetOutput(logger.Out)
	logrus.SetFormatter(logger.Formatter)
	logrus.SetLevel(logger.Level)
	return cfg, logger
}

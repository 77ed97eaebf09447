/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/ryshoes/storefront/internal/db"
	"github.com/ryshoes/storefront/internal/services"
	"github.com/ryshoes/storefront/internal/store"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database",
}

var seedAdminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Create the admin account or reset its password",
	Long: `Creates the ADMIN user from ADMIN_USERNAME and ADMIN_PASSWORD.
Running it again resets the password and role of that user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := setup()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		auth := services.NewAuthService(store.NewUserRepository(dbConn))
		admin, err := auth.SeedAdmin(cmd.Context(), cfg.Admin.Username, cfg.Admin.Password)
		if err != nil {
			return err
		}

		logger.WithField("id", admin.ID).WithField("username", admin.Username).Info("admin user seeded")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedAdminCmd)
}

package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"gas-weather-analytics/internal/app"
)

var (
	cleanRecreate bool
	cleanYes      bool
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().InitDB(cmd.Context())
	},
}

var verifyDBCmd = &cobra.Command{
	Use:   "verify-db",
	Short: "List tables and their row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().VerifyDB(cmd.Context(), cmd.OutOrStdout())
	},
}

var cleanDBCmd = &cobra.Command{
	Use:   "clean-db",
	Short: "Truncate all tables, or drop and recreate them",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cleanYes {
			return errors.New("clean-db deletes all stored data; pass --yes to confirm")
		}
		return getApp().CleanDB(cmd.Context(), app.CleanOptions{Recreate: cleanRecreate})
	},
}

func init() {
	cleanDBCmd.Flags().BoolVar(&cleanRecreate, "recreate", false, "Drop and recreate tables instead of truncating")
	cleanDBCmd.Flags().BoolVar(&cleanYes, "yes", false, "Confirm data deletion")
}

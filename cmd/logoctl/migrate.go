package main

import (
	"github.com/spf13/cobra"

	"kiranalogo/internal/infra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the database schema",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(infra.MigrateUp), string(infra.MigrateDown)},
	RunE:      runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(_ *cobra.Command, args []string) error {
	dbURL, err := databaseURL()
	if err != nil {
		return err
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "migrate").Logger()
	return infra.RunMigrations(dbURL, infra.MigrateDirection(args[0]), logger)
}

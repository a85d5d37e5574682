package cmd

import (
	"context"
	"fmt"

	"github.com/witos44/UserAuthSystem/app/repository"
	"github.com/witos44/UserAuthSystem/config"

	"github.com/spf13/cobra"
)

var applyMigrations = func(ctx context.Context, dsn string) error {
	db, err := repository.OpenMySQL(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	return repository.RunMigrations(ctx, db)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Storage.Driver != config.StorageDriverMySQL {
			return errMemoryStoreUnsupported
		}

		if err = applyMigrations(cmd.Context(), cfg.DSN()); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

package main

import (
	"fmt"

	"github.com/shenikar/truck_dispatch_system/internal/config"
	"github.com/shenikar/truck_dispatch_system/pkg/postgres"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.StoreDriverPostgres {
				log.WithField("store_driver", cfg.StoreDriver).Info("Nothing to migrate")
				return nil
			}
			return runMigrations(cfg, log)
		},
	}
}

func runMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	changed, err := postgres.Migrate(cfg.DatabaseURL, cfg.MigrationsPath)
	if err != nil {
		log.WithError(err).Error("Failed to run database migrations")
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if changed {
		log.Info("Database migrations applied successfully")
	} else {
		log.Info("Database schema is up to date")
	}
	return nil
}

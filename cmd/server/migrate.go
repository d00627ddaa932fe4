package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/AnshRaj112/agentdesk-backend/internal/config"
	"github.com/AnshRaj112/agentdesk-backend/internal/database"
	"github.com/AnshRaj112/agentdesk-backend/internal/services"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply PostgreSQL schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !migrateDown {
			return database.RunMigrations(cfg.PostgresURI)
		}

		m, err := database.NewMigrator(cfg.PostgresURI)
		if err != nil {
			return err
		}
		defer m.Close()
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		slog.Info("✅ Rolled back one migration")
		return nil
	},
}

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "Create MongoDB indexes (unique email, activity ordering)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StoreDriver != config.StoreMongo {
			return fmt.Errorf("indexes: STORE_DRIVER is %q; PostgreSQL constraints come from migrations", cfg.StoreDriver)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		client, db, err := database.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer database.Disconnect(client)

		return ensureIndexes(ctx, services.NewMongoUserStore(db), services.NewMongoActivityStore(db))
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back the most recent migration")
}

func ensureIndexes(ctx context.Context, stores ...services.IndexEnsurer) error {
	for _, s := range stores {
		if err := s.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	slog.Info("✅ MongoDB indexes ensured")
	return nil
}

package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/marminbh/parking-svc/internal/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Migration sets, one per service database.
const (
	MigrationsSpot        = "spot"
	MigrationsReservation = "reservation"
	MigrationsBilling     = "billing"
)

// RunMigrations applies the named migration set to the service database
func RunMigrations(cfg *config.DatabaseConfig, set string, logger *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations/"+set)
	if err != nil {
		return fmt.Errorf("failed to open migration set %s: %w", set, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.MigrationURL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if logger != nil {
		logger.Info("Database migrations applied successfully", zap.String("set", set))
	}
	return nil
}

package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateConfig controls where migrations are applied.
type MigrateConfig struct {
	// SchemaName is created if missing; empty means the connection default.
	SchemaName      string
	MigrationsTable string
	Logger          *slog.Logger
}

// Migrate applies all pending SQL migrations bundled with the repository.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg MigrateConfig) (err error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	if cfg.MigrationsTable == "" {
		cfg.MigrationsTable = "schema_migrations"
	}

	if cfg.SchemaName != "" {
		if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{cfg.SchemaName}.Sanitize()); err != nil {
			return fmt.Errorf("create schema %s: %w", cfg.SchemaName, err)
		}
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire dedicated connection: %w", err)
	}

	driver, err := migratepg.WithConnection(ctx, conn, &migratepg.Config{
		MigrationsTable: cfg.MigrationsTable,
		SchemaName:      cfg.SchemaName,
	})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("initialize postgres driver: %w", err)
	}
	defer func() {
		if closeErr := driver.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close migration connection: %w", closeErr)
		}
	}()

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	version, dirty, err := migrator.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Info("No migrations have been applied yet")
	case err != nil:
		log.Warn("Error getting migration version", "err", err)
	default:
		log.Info("Current migration state", "version", version, "dirty", dirty)
	}
	if dirty {
		return fmt.Errorf("database is dirty at version %d, fix manually", version)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("No new migrations to apply")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	if finalVersion, _, versionErr := migrator.Version(); versionErr == nil {
		log.Info("Migrations applied successfully", "version", finalVersion)
	}
	return nil
}

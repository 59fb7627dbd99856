package db

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/agentforge/controlplane/internal/db/dialect"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations against the writer
// connection, using the golang-migrate driver and SQL dialect matching the
// pool's backend. It is a no-op (migrate.ErrNoChange) when the schema is
// already current.
func Migrate(pool *Pool) error {
	sqlDB := pool.rootWriter.DB

	var driver migrate.Driver
	var err error
	var subdir string
	switch pool.Driver() {
	case dialect.PGX:
		driver, err = postgres.WithInstance(sqlDB, &postgres.Config{})
		subdir = "migrations/postgres"
	case dialect.SQLite3:
		driver, err = sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
		subdir = "migrations/sqlite"
	default:
		return fmt.Errorf("unsupported driver %q for migrations", pool.Driver())
	}
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, subdir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, pool.Driver(), driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	if err := source.Close(); err != nil {
		return fmt.Errorf("close migration source: %w", err)
	}

	return nil
}

package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/agentforge/controlplane/internal/common/config"
	"github.com/agentforge/controlplane/internal/db/dialect"
)

// Open builds a Pool from the given database configuration, selecting the
// sqlite or postgres backend per cfg.Driver.
func Open(cfg config.DatabaseConfig) (*Pool, error) {
	switch cfg.Driver {
	case "postgres":
		sqlDB, err := OpenPostgres(cfg.DSN(), cfg.MaxConns, cfg.MinConns)
		if err != nil {
			return nil, err
		}
		sx := sqlx.NewDb(sqlDB, dialect.PGX)
		return NewPool(dialect.PGX, sx, sx), nil

	case "sqlite":
		writer, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		reader, err := OpenSQLiteReader(cfg.Path)
		if err != nil {
			_ = writer.Close()
			return nil, err
		}
		return NewPool(
			dialect.SQLite3,
			sqlx.NewDb(writer, dialect.SQLite3),
			sqlx.NewDb(reader, dialect.SQLite3),
		), nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

package db

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/agentforge/controlplane/internal/db/dialect"
)

// Pool provides separate read and write database connections.
//
// For SQLite with WAL mode, this enables concurrent reads while serializing
// writes through a single connection: the writer pool uses MaxOpenConns(1)
// to avoid SQLITE_BUSY on write contention, while the reader pool allows
// multiple concurrent connections for SELECT queries. The run-claim
// protocol adds FOR UPDATE SKIP LOCKED only on Postgres; on SQLite the
// single writer connection serializes the claim transaction instead.
//
// For PostgreSQL, both Writer and Reader return the same *sqlx.DB since pgx
// handles connection pooling internally.
//
// Writer and Reader are typed as dialect.DBTX rather than *sqlx.DB so that
// BeginTxx can hand back a Pool backed by a single *sqlx.Tx: repositories
// built against it (via their existing NewSQLRepository(pool) constructor)
// run unmodified, but every write goes through that one transaction.
type Pool struct {
	writer dialect.DBTX
	reader dialect.DBTX
	driver string

	rootWriter *sqlx.DB // nil for a transaction-scoped Pool
	rootReader *sqlx.DB
	tx         *sqlx.Tx // non-nil only for a transaction-scoped Pool
}

// NewPool creates a Pool from separate writer and reader connections.
func NewPool(driver string, writer, reader *sqlx.DB) *Pool {
	return &Pool{driver: driver, writer: writer, reader: reader, rootWriter: writer, rootReader: reader}
}

// Writer returns the connection used for INSERT, UPDATE, DELETE.
func (p *Pool) Writer() dialect.DBTX { return p.writer }

// Reader returns the connection used for SELECT queries.
func (p *Pool) Reader() dialect.DBTX { return p.reader }

// Driver returns the dialect.SQLite3 / dialect.PGX driver name.
func (p *Pool) Driver() string { return p.driver }

// Close closes both the writer and reader pools. Not valid on a
// transaction-scoped Pool returned by BeginTxx; use Commit or Rollback
// there instead.
func (p *Pool) Close() error {
	wErr := p.rootWriter.Close()
	if p.rootReader != p.rootWriter {
		if rErr := p.rootReader.Close(); rErr != nil && wErr == nil {
			return rErr
		}
	}
	return wErr
}

// BeginTxx starts a transaction on the writer connection and returns a Pool
// scoped to it: both Writer() and Reader() return the transaction, so every
// repository constructed against the returned Pool participates in the same
// atomic unit of work. The caller must Commit or Rollback exactly once;
// Rollback after Commit is a no-op error that callers discard via defer.
func (p *Pool) BeginTxx(ctx context.Context) (*Pool, error) {
	tx, err := p.rootWriter.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Pool{driver: p.driver, writer: tx, reader: tx, tx: tx}, nil
}

// Commit commits a transaction-scoped Pool returned by BeginTxx.
func (p *Pool) Commit() error { return p.tx.Commit() }

// Rollback aborts a transaction-scoped Pool returned by BeginTxx.
func (p *Pool) Rollback() error { return p.tx.Rollback() }

package project

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/agentforge/controlplane/internal/apperr"
	dbpkg "github.com/agentforge/controlplane/internal/db"
	"github.com/agentforge/controlplane/internal/db/dialect"
)

// SQLRepository is the dialect-portable Repository backed by a db.Pool.
type SQLRepository struct {
	pool *dbpkg.Pool
}

var _ Repository = (*SQLRepository)(nil)

func NewSQLRepository(pool *dbpkg.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

func (s *SQLRepository) Create(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := s.pool.Writer().Rebind(`INSERT INTO projects (id, user_id, name) VALUES (?, ?, ?)`)
	if _, err := s.pool.Writer().ExecContext(ctx, query, p.ID, p.UserID, p.Name); err != nil {
		return apperr.Database("create project", err)
	}
	return nil
}

func (s *SQLRepository) Get(ctx context.Context, id string, includeDeleted bool) (*Project, error) {
	var p Project
	query := `SELECT id, user_id, name, is_deleted, created_at, updated_at FROM projects WHERE id = ?`
	if !includeDeleted {
		query += ` AND is_deleted = ` + deletedFalse(s.pool.Driver())
	}
	query = s.pool.Reader().Rebind(query)
	if err := s.pool.Reader().GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("project", id)
		}
		return nil, apperr.Database("get project", err)
	}
	return &p, nil
}

func (s *SQLRepository) Update(ctx context.Context, p *Project) error {
	query := s.pool.Writer().Rebind(`
		UPDATE projects SET name = ?, updated_at = ` + dialect.Now(s.pool.Driver()) + `
		WHERE id = ? AND is_deleted = ` + deletedFalse(s.pool.Driver()))
	res, err := s.pool.Writer().ExecContext(ctx, query, p.Name, p.ID)
	if err != nil {
		return apperr.Database("update project", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.NotFound("project", p.ID)
	}
	return nil
}

func (s *SQLRepository) Delete(ctx context.Context, id string) error {
	txPool, err := s.pool.BeginTxx(ctx)
	if err != nil {
		return apperr.Database("begin delete project tx", err)
	}
	defer func() { _ = txPool.Rollback() }()

	softDelete := txPool.Writer().Rebind(`
		UPDATE projects SET is_deleted = ` + deletedTrue(s.pool.Driver()) + `, updated_at = ` + dialect.Now(s.pool.Driver()) + `
		WHERE id = ?`)
	res, err := txPool.Writer().ExecContext(ctx, softDelete, id)
	if err != nil {
		return apperr.Database("soft delete project", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.NotFound("project", id)
	}

	clearRefs := txPool.Writer().Rebind(`UPDATE agent_sessions SET project_id = NULL WHERE project_id = ?`)
	if _, err := txPool.Writer().ExecContext(ctx, clearRefs, id); err != nil {
		return apperr.Database("clear session project refs", err)
	}

	if err := txPool.Commit(); err != nil {
		return apperr.Database("commit delete project tx", err)
	}
	return nil
}

func (s *SQLRepository) List(ctx context.Context, userID string, limit, offset int) ([]*Project, error) {
	query := `
		SELECT id, user_id, name, is_deleted, created_at, updated_at
		FROM projects
		WHERE user_id = ? AND is_deleted = ` + deletedFalse(s.pool.Driver()) + `
		ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	query = s.pool.Reader().Rebind(query)

	var rows []*Project
	if err := s.pool.Reader().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperr.Database("list projects", err)
	}
	return rows, nil
}

func deletedFalse(driver string) string {
	if dialect.IsPostgres(driver) {
		return "FALSE"
	}
	return "0"
}

func deletedTrue(driver string) string {
	if dialect.IsPostgres(driver) {
		return "TRUE"
	}
	return "1"
}

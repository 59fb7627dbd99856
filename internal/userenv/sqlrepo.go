package userenv

import (
	"context"
	"database/sql"
	"errors"

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

// Set upserts a (user_id, name) pair, overwriting any existing value.
func (s *SQLRepository) Set(ctx context.Context, userID, name, value string) error {
	existing, err := s.Get(ctx, userID, name)
	if err != nil && !apperr.Is(err, apperr.CodeNotFound) {
		return err
	}

	if existing == nil {
		query := s.pool.Writer().Rebind(`
			INSERT INTO user_env_vars (user_id, name, value) VALUES (?, ?, ?)`)
		if _, err := s.pool.Writer().ExecContext(ctx, query, userID, name, value); err != nil {
			return apperr.Database("insert user env var", err)
		}
		return nil
	}

	query := s.pool.Writer().Rebind(`
		UPDATE user_env_vars SET value = ?, updated_at = ` + dialect.Now(s.pool.Driver()) + `
		WHERE user_id = ? AND name = ?`)
	if _, err := s.pool.Writer().ExecContext(ctx, query, value, userID, name); err != nil {
		return apperr.Database("update user env var", err)
	}
	return nil
}

func (s *SQLRepository) Get(ctx context.Context, userID, name string) (*EnvVar, error) {
	query := s.pool.Reader().Rebind(`
		SELECT * FROM user_env_vars WHERE user_id = ? AND name = ?`)
	var row EnvVar
	if err := s.pool.Reader().GetContext(ctx, &row, query, userID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user_env_var", name)
		}
		return nil, apperr.Database("get user env var", err)
	}
	return &row, nil
}

func (s *SQLRepository) List(ctx context.Context, userID string) ([]*EnvVar, error) {
	query := s.pool.Reader().Rebind(`
		SELECT * FROM user_env_vars WHERE user_id = ? ORDER BY name`)
	var rows []*EnvVar
	if err := s.pool.Reader().SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, apperr.Database("list user env vars", err)
	}
	return rows, nil
}

func (s *SQLRepository) Delete(ctx context.Context, userID, name string) error {
	query := s.pool.Writer().Rebind(`DELETE FROM user_env_vars WHERE user_id = ? AND name = ?`)
	res, err := s.pool.Writer().ExecContext(ctx, query, userID, name)
	if err != nil {
		return apperr.Database("delete user env var", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.NotFound("user_env_var", name)
	}
	return nil
}

func (s *SQLRepository) AsMap(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Name] = r.Value
	}
	return out, nil
}

package userenv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/common/config"
	dbpkg "github.com/agentforge/controlplane/internal/db"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	pool, err := dbpkg.Open(config.DatabaseConfig{Driver: "sqlite", Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, dbpkg.Migrate(pool))

	return NewSQLRepository(pool)
}

func TestSet_InsertsThenUpdates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "user-1", "API_KEY", "first"))
	got, err := repo.Get(ctx, "user-1", "API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Value)

	require.NoError(t, repo.Set(ctx, "user-1", "API_KEY", "second"))
	got, err = repo.Get(ctx, "user-1", "API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Value)
}

func TestGet_MissingIsNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Get(context.Background(), "user-1", "MISSING")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestAsMap_ReturnsOnlyThatUsersVars(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "user-1", "A", "1"))
	require.NoError(t, repo.Set(ctx, "user-1", "B", "2"))
	require.NoError(t, repo.Set(ctx, "user-2", "A", "other"))

	env, err := repo.AsMap(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, env)
}

func TestDelete_RemovesVar(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "user-1", "A", "1"))
	require.NoError(t, repo.Delete(ctx, "user-1", "A"))

	_, err := repo.Get(ctx, "user-1", "A")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	err = repo.Delete(ctx, "user-1", "A")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

package project

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/controlplane/internal/common/config"
	dbpkg "github.com/agentforge/controlplane/internal/db"
	"github.com/agentforge/controlplane/internal/session"
)

func newTestRepo(t *testing.T) (*SQLRepository, *dbpkg.Pool) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	pool, err := dbpkg.Open(config.DatabaseConfig{Driver: "sqlite", Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, dbpkg.Migrate(pool))
	return NewSQLRepository(pool), pool
}

func TestCreateGetUpdateProject(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	p := &Project{UserID: "user-1", Name: "demo"}
	require.NoError(t, repo.Create(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := repo.Get(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Name)

	got.Name = "renamed"
	require.NoError(t, repo.Update(ctx, got))

	refetched, err := repo.Get(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "renamed", refetched.Name)
}

func TestListProjects_ExcludesDeleted(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	keep := &Project{UserID: "user-1", Name: "keep"}
	gone := &Project{UserID: "user-1", Name: "gone"}
	require.NoError(t, repo.Create(ctx, keep))
	require.NoError(t, repo.Create(ctx, gone))
	require.NoError(t, repo.Delete(ctx, gone.ID))

	items, err := repo.List(ctx, "user-1", 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "keep", items[0].Name)
}

func TestDeleteProject_ClearsSessionReference(t *testing.T) {
	repo, pool := newTestRepo(t)
	ctx := context.Background()

	p := &Project{UserID: "user-1", Name: "demo"}
	require.NoError(t, repo.Create(ctx, p))

	sessions := session.NewSQLRepository(pool)
	sess := &session.Session{UserID: "user-1", ProjectID: &p.ID, ConfigSnapshot: map[string]any{}}
	require.NoError(t, sessions.CreateSession(ctx, sess))

	require.NoError(t, repo.Delete(ctx, p.ID))

	refetched, err := sessions.GetSession(ctx, sess.ID, false)
	require.NoError(t, err)
	assert.Nil(t, refetched.ProjectID)
}

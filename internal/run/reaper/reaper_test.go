package reaper

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/controlplane/internal/common/config"
	"github.com/agentforge/controlplane/internal/common/logger"
	dbpkg "github.com/agentforge/controlplane/internal/db"
	"github.com/agentforge/controlplane/internal/run"
)

func newTestRepo(t *testing.T) run.Repository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	pool, err := dbpkg.Open(config.DatabaseConfig{Driver: "sqlite", Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, dbpkg.Migrate(pool))

	_, err = pool.Writer().Exec(`INSERT INTO agent_sessions (id, user_id, status) VALUES (?, ?, ?)`, "session-1", "user-1", "pending")
	require.NoError(t, err)
	return run.NewSQLRepository(pool)
}

func TestReaper_SweepReleasesOrphanedClaims(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := &run.Run{SessionID: "session-1", ConfigSnapshot: map[string]any{}}
	require.NoError(t, repo.Create(ctx, created))

	claimed, err := repo.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	r := New(repo, logger.Default(), 0)
	require.NoError(t, r.Start("* * * * * *"))
	defer r.Stop()

	assert.Eventually(t, func() bool {
		got, err := repo.Get(ctx, claimed.ID)
		return err == nil && got.Status == run.StatusQueued
	}, 3*time.Second, 50*time.Millisecond)
}

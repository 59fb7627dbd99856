package toolexec

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/controlplane/internal/common/config"
	dbpkg "github.com/agentforge/controlplane/internal/db"
)

func newTestRepo(t *testing.T) (*SQLRepository, string, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	pool, err := dbpkg.Open(config.DatabaseConfig{Driver: "sqlite", Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, dbpkg.Migrate(pool))

	sessionID := "session-1"
	_, err = pool.Writer().Exec(`INSERT INTO agent_sessions (id, user_id, status) VALUES (?, ?, ?)`, sessionID, "user-1", "pending")
	require.NoError(t, err)

	runID := uuid.NewString()
	_, err = pool.Writer().Exec(`INSERT INTO agent_runs (id, session_id, status, config_snapshot) VALUES (?, ?, ?, '{}')`, runID, sessionID, "queued")
	require.NoError(t, err)

	return NewSQLRepository(pool), sessionID, runID
}

func TestUpsert_StartThenFinishIsMonotone(t *testing.T) {
	repo, sessionID, runID := newTestRepo(t)
	ctx := context.Background()

	id := uuid.NewString()
	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.Upsert(ctx, &ToolExecution{
		ID: id, SessionID: sessionID, RunID: runID, ToolName: "bash",
		Input: map[string]any{"cmd": "ls"}, Status: StatusRunning, StartedAt: &started,
	}))

	finished := started.Add(time.Second)
	require.NoError(t, repo.Upsert(ctx, &ToolExecution{
		ID: id, SessionID: sessionID, RunID: runID, ToolName: "bash",
		Output: map[string]any{"stdout": "ok"}, Status: StatusSucceeded, FinishedAt: &finished,
	}))

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.FinishedAt)
	assert.Equal(t, "ok", got.Output["stdout"])

	// A stale re-finish with an earlier finished_at doesn't clobber the
	// already-recorded one.
	earlier := started
	require.NoError(t, repo.Upsert(ctx, &ToolExecution{
		ID: id, SessionID: sessionID, RunID: runID, ToolName: "bash",
		Status: StatusSucceeded, FinishedAt: &earlier,
	}))
	again, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, again.FinishedAt.Equal(finished))
}

func TestListByRunAndSession(t *testing.T) {
	repo, sessionID, runID := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Upsert(ctx, &ToolExecution{
			ID: uuid.NewString(), SessionID: sessionID, RunID: runID, ToolName: "bash", Status: StatusRunning,
		}))
	}

	byRun, err := repo.ListByRun(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, byRun, 3)

	bySession, err := repo.ListBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, bySession, 3)
}

func TestUsageLogsByRunAndSession(t *testing.T) {
	repo, sessionID, runID := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.AppendUsage(ctx, &UsageLog{RunID: runID, InputTokens: 10, OutputTokens: 20, TotalTokens: 30}))
	require.NoError(t, repo.AppendUsage(ctx, &UsageLog{RunID: runID, InputTokens: 5, OutputTokens: 5, TotalTokens: 10}))

	byRun, err := repo.ListUsageByRun(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, byRun, 2)

	bySession, err := repo.ListUsageBySession(ctx, sessionID)
	require.NoError(t, err)
	assert.Len(t, bySession, 2)
}

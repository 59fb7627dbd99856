package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestCreateAndGetSession(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sess := &Session{UserID: "user-1", ConfigSnapshot: map[string]any{"repo_url": "https://example.com/repo"}}
	require.NoError(t, repo.CreateSession(ctx, sess))
	require.NotEmpty(t, sess.ID)

	got, err := repo.GetSession(ctx, sess.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "https://example.com/repo", got.ConfigSnapshot["repo_url"])
	assert.Equal(t, StatusPending, got.Status)
}

func TestSetSDKSessionID_IsIdempotentOnceSet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sess := &Session{UserID: "user-1", ConfigSnapshot: map[string]any{}}
	require.NoError(t, repo.CreateSession(ctx, sess))

	require.NoError(t, repo.SetSDKSessionID(ctx, sess.ID, "sdk-1"))
	require.NoError(t, repo.SetSDKSessionID(ctx, sess.ID, "sdk-2"))

	got, err := repo.GetSession(ctx, sess.ID, false)
	require.NoError(t, err)
	require.NotNil(t, got.SDKSessionID)
	assert.Equal(t, "sdk-1", *got.SDKSessionID)
}

func TestDeleteSession_ExcludedFromListAndDefaultGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sess := &Session{UserID: "user-1", ConfigSnapshot: map[string]any{}}
	require.NoError(t, repo.CreateSession(ctx, sess))
	require.NoError(t, repo.DeleteSession(ctx, sess.ID))

	_, err := repo.GetSession(ctx, sess.ID, false)
	assert.Error(t, err)

	got, err := repo.GetSession(ctx, sess.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)

	items, err := repo.ListSessions(ctx, "user-1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAppendMessageAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sess := &Session{UserID: "user-1", ConfigSnapshot: map[string]any{}}
	require.NoError(t, repo.CreateSession(ctx, sess))

	preview := "hello"
	require.NoError(t, repo.AppendMessage(ctx, &Message{
		SessionID:   sess.ID,
		Role:        RoleUser,
		Content:     map[string]any{"text": "hello"},
		TextPreview: &preview,
	}))
	require.NoError(t, repo.AppendMessage(ctx, &Message{
		SessionID: sess.ID,
		Role:      RoleAssistant,
		Content:   map[string]any{"text": "hi there"},
	}))

	msgs, err := repo.ListMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
}

func TestPatchState_MergesAndUpdatesWorkspaceFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sess := &Session{UserID: "user-1", ConfigSnapshot: map[string]any{}}
	require.NoError(t, repo.CreateSession(ctx, sess))

	prefix := "sessions/abc"
	require.NoError(t, repo.PatchState(ctx, sess.ID, map[string]any{"step": 1}, &WorkspacePatch{
		Prefix: &prefix,
	}))

	got, err := repo.GetSession(ctx, sess.ID, false)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got.StatePatch["step"])
	require.NotNil(t, got.WorkspacePrefix)
	assert.Equal(t, prefix, *got.WorkspacePrefix)
}

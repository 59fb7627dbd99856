package executormanager

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/controlplane/internal/common/config"
	dbpkg "github.com/agentforge/controlplane/internal/db"
	"github.com/agentforge/controlplane/internal/objectstore"
	"github.com/agentforge/controlplane/internal/preset"
	"github.com/agentforge/controlplane/internal/resolver"
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/session"
	"github.com/agentforge/controlplane/internal/stager"
	"github.com/agentforge/controlplane/internal/userenv"
)

func newTestManager(t *testing.T, dispatchURL string) (*Manager, run.Repository, session.Repository) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	pool, err := dbpkg.Open(config.DatabaseConfig{Driver: "sqlite", Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, dbpkg.Migrate(pool))

	runs := run.NewSQLRepository(pool)
	sessions := session.NewSQLRepository(pool)
	envRepo := userenv.NewSQLRepository(pool)
	mcpRepo := preset.NewSQLMcpRepository(pool)
	skillRepo := preset.NewSQLSkillRepository(pool)

	res := resolver.New(envRepo, mcpRepo, skillRepo)
	stg := stager.New(objectstore.NewMemStore(), t.TempDir(), nil)
	dispatcher := NewDispatcher(dispatchURL, 5*time.Second, nil, nil)

	m := New(runs, sessions, res, stg, dispatcher, config.ExecutorManagerConfig{
		ClaimPollInterval: 1,
		Concurrency:       1,
	}, "worker-test", nil)

	return m, runs, sessions
}

func TestProcessRun_DispatchesSuccessfully(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, runs, sessions := newTestManager(t, srv.URL)
	ctx := context.Background()

	sess := &session.Session{UserID: "user-1", ConfigSnapshot: map[string]any{}}
	require.NoError(t, sessions.CreateSession(ctx, sess))

	r := &run.Run{SessionID: sess.ID, ConfigSnapshot: map[string]any{
		"input_files": []any{},
	}}
	require.NoError(t, runs.Create(ctx, r))

	claimed, err := runs.Claim(ctx, "worker-test")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	err = m.processRun(ctx, claimed)
	require.NoError(t, err)

	got, err := runs.Get(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusRunning, got.Status)
	assert.Equal(t, "/tasks", gotPath)
}

func TestProcessRun_DispatchFailureFailsRunAndSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, runs, sessions := newTestManager(t, srv.URL)
	ctx := context.Background()

	sess := &session.Session{UserID: "user-1", ConfigSnapshot: map[string]any{}}
	require.NoError(t, sessions.CreateSession(ctx, sess))

	r := &run.Run{SessionID: sess.ID, ConfigSnapshot: map[string]any{}}
	require.NoError(t, runs.Create(ctx, r))

	claimed, err := runs.Claim(ctx, "worker-test")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	err = m.processRun(ctx, claimed)
	require.Error(t, err)
	m.failRun(ctx, claimed, err)

	gotRun, err := runs.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusFailed, gotRun.Status)

	gotSess, err := sessions.GetSession(ctx, sess.ID, false)
	require.NoError(t, err)
	assert.Equal(t, session.StatusFailed, gotSess.Status)
}

func TestPollOnce_ClaimsAndProcesses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m, runs, sessions := newTestManager(t, srv.URL)
	ctx := context.Background()

	sess := &session.Session{UserID: "user-1", ConfigSnapshot: map[string]any{}}
	require.NoError(t, sessions.CreateSession(ctx, sess))
	r := &run.Run{SessionID: sess.ID, ConfigSnapshot: map[string]any{}}
	require.NoError(t, runs.Create(ctx, r))

	claimed := m.pollOnce(ctx, 0)
	assert.True(t, claimed)

	got, err := runs.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusRunning, got.Status)

	claimedAgain := m.pollOnce(ctx, 0)
	assert.False(t, claimedAgain)
}

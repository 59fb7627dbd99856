package callback

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/common/config"
	dbpkg "github.com/agentforge/controlplane/internal/db"
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/session"
	"github.com/agentforge/controlplane/internal/toolexec"
)

type testFixture struct {
	sink     *Sink
	runs     run.Repository
	sessions session.Repository
	tools    toolexec.Repository
	sess     *session.Session
	runRow   *run.Run
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	pool, err := dbpkg.Open(config.DatabaseConfig{Driver: "sqlite", Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, dbpkg.Migrate(pool))

	sessions := session.NewSQLRepository(pool)
	runs := run.NewSQLRepository(pool)
	tools := toolexec.NewSQLRepository(pool)

	sess := &session.Session{UserID: "user-1", ConfigSnapshot: map[string]any{}}
	require.NoError(t, sessions.CreateSession(context.Background(), sess))

	r := &run.Run{SessionID: sess.ID, ConfigSnapshot: map[string]any{}}
	require.NoError(t, runs.Create(context.Background(), r))

	claimed, err := runs.Claim(context.Background(), "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	return &testFixture{
		sink:     New(pool),
		runs:     runs,
		sessions: sessions,
		tools:    tools,
		sess:     sess,
		runRow:   claimed,
	}
}

func TestHandle_MessageAppended(t *testing.T) {
	f := newFixture(t)
	err := f.sink.Handle(context.Background(), Request{
		Kind:      KindMessageAppended,
		RunID:     f.runRow.ID,
		SessionID: f.sess.ID,
		Payload: map[string]any{
			"role":         "assistant",
			"content":      map[string]any{"text": "hi"},
			"text_preview": "hi",
		},
	})
	require.NoError(t, err)

	msgs, err := f.sessions.ListMessages(context.Background(), f.sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, session.RoleAssistant, msgs[0].Role)
}

func TestHandle_ToolStartedThenFinished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sink.Handle(ctx, Request{
		Kind:      KindToolStarted,
		RunID:     f.runRow.ID,
		SessionID: f.sess.ID,
		Payload:   map[string]any{"id": "tool-1", "tool_name": "search", "input": map[string]any{"q": "x"}},
	}))
	require.NoError(t, f.sink.Handle(ctx, Request{
		Kind:      KindToolFinished,
		RunID:     f.runRow.ID,
		SessionID: f.sess.ID,
		Payload:   map[string]any{"id": "tool-1", "tool_name": "search", "output": map[string]any{"result": "ok"}},
	}))

	te, err := f.tools.Get(ctx, "tool-1")
	require.NoError(t, err)
	assert.Equal(t, toolexec.StatusSucceeded, te.Status)
	assert.NotNil(t, te.StartedAt)
	assert.NotNil(t, te.FinishedAt)
}

func TestHandle_RunSucceededCompletesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sink.Handle(ctx, Request{
		Kind:      KindRunSucceeded,
		RunID:     f.runRow.ID,
		SessionID: f.sess.ID,
		Payload: map[string]any{
			"workspace_export": map[string]any{"status": "complete", "archive_key": "k1"},
		},
	}))

	got, err := f.sessions.GetSession(ctx, f.sess.ID, false)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, got.Status)
	require.NotNil(t, got.WorkspaceExportStatus)
	assert.Equal(t, "complete", *got.WorkspaceExportStatus)
}

func TestHandle_RunFailedMarksSessionFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sink.Handle(ctx, Request{
		Kind:      KindRunFailed,
		RunID:     f.runRow.ID,
		SessionID: f.sess.ID,
		Payload:   map[string]any{"claim_token": *f.runRow.ClaimToken, "code": "EXTERNAL_SERVICE_ERROR", "message": "boom"},
	}))

	got, err := f.sessions.GetSession(ctx, f.sess.ID, false)
	require.NoError(t, err)
	assert.Equal(t, session.StatusFailed, got.Status)
}

func TestHandle_UnknownKindIsBadRequest(t *testing.T) {
	f := newFixture(t)
	err := f.sink.Handle(context.Background(), Request{Kind: "bogus", RunID: f.runRow.ID, SessionID: f.sess.ID})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))
}

func TestHandle_SessionMismatchIsNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.sink.Handle(context.Background(), Request{
		Kind:      KindMessageAppended,
		RunID:     f.runRow.ID,
		SessionID: "wrong-session",
		Payload:   map[string]any{"role": "assistant", "content": map[string]any{}},
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/controlplane/internal/callback"
	"github.com/agentforge/controlplane/internal/common/config"
	dbpkg "github.com/agentforge/controlplane/internal/db"
	"github.com/agentforge/controlplane/internal/objectstore"
	"github.com/agentforge/controlplane/internal/project"
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/session"
	"github.com/agentforge/controlplane/internal/toolexec"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	pool, err := dbpkg.Open(config.DatabaseConfig{Driver: "sqlite", Path: dbPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, dbpkg.Migrate(pool))

	sessions := session.NewSQLRepository(pool)
	projects := project.NewSQLRepository(pool)
	runs := run.NewSQLRepository(pool)
	tools := toolexec.NewSQLRepository(pool)

	return NewServer(Deps{
		Sessions: sessions,
		Projects: projects,
		Runs:     runs,
		Tools:    tools,
		Store:    objectstore.NewMemStore(),
		Sink:     callback.New(pool),
	})
}

func doJSON(t *testing.T, srv *Server, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetSession(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/sessions", "user-1", map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data session.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)

	rec = doJSON(t, srv, http.MethodGet, "/sessions/"+created.Data.ID, "user-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetSession_WrongUserIsNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/sessions", "user-1", map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data session.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, srv, http.MethodGet, "/sessions/"+created.Data.ID, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessions_MissingUserHeaderIsUnauthorized(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProjectCRUD(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/projects", "user-1", map[string]any{"name": "demo"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data project.Project `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	newName := "renamed"
	rec = doJSON(t, srv, http.MethodPatch, "/projects/"+created.Data.ID, "user-1", map[string]any{"name": newName})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/projects/"+created.Data.ID, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Data project.Project `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, newName, got.Data.Name)

	rec = doJSON(t, srv, http.MethodDelete, "/projects/"+created.Data.ID, "user-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunClaimStartCallbackFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/sessions", "user-1", map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sess struct {
		Data session.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))

	rec = doJSON(t, srv, http.MethodPost, "/sessions/"+sess.Data.ID+"/runs", "user-1", map[string]any{
		"user_message_text": "hello",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data run.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, srv, http.MethodPost, "/runs/claim", "", map[string]any{"worker_id": "worker-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var claimed struct {
		Data struct {
			Run run.Run `json:"run"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claimed))
	require.Equal(t, created.Data.ID, claimed.Data.Run.ID)
	require.NotNil(t, claimed.Data.Run.ClaimToken)

	rec = doJSON(t, srv, http.MethodPost, "/runs/"+created.Data.ID+"/start", "", map[string]any{
		"claim_token": *claimed.Data.Run.ClaimToken,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/callback", "", map[string]any{
		"kind":       "run.succeeded",
		"run_id":     created.Data.ID,
		"session_id": sess.Data.ID,
		"payload":    map[string]any{},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/sessions/"+sess.Data.ID, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var gotSess struct {
		Data session.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gotSess))
	assert.Equal(t, session.StatusCompleted, gotSess.Data.Status)
}

func TestAttachmentUpload(t *testing.T) {
	srv := newTestServer(t)

	var buf bytes.Buffer
	buf.WriteString("--boundary\r\n")
	buf.WriteString("Content-Disposition: form-data; name=\"file\"; filename=\"my file!.txt\"\r\n")
	buf.WriteString("Content-Type: text/plain\r\n\r\n")
	buf.WriteString("hello world")
	buf.WriteString("\r\n--boundary--\r\n")

	req := httptest.NewRequest(http.MethodPost, "/attachments/upload", &buf)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=boundary")
	req.Header.Set("X-User-Id", "user-1")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Data struct {
			Name   string `json:"name"`
			Source string `json:"source"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "my_file_.txt", resp.Data.Name)
	assert.Contains(t, resp.Data.Source, "attachments/user-1/")
}

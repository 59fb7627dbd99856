package executormanager

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/serviceauth"
)

func TestDispatch_SendsSignedRequest(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	issuer := serviceauth.NewIssuer("test-secret", time.Minute)
	d := NewDispatcher(srv.URL, 5*time.Second, issuer, nil)

	err := d.Dispatch(context.Background(), DispatchTask{RunID: "run-1"})
	require.NoError(t, err)
	assert.Contains(t, gotAuth, "Bearer ")
}

func TestDispatch_NonOKStatusIsExternalServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, 5*time.Second, nil, nil)
	err := d.Dispatch(context.Background(), DispatchTask{RunID: "run-1"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeExternalService))
}

func TestDispatch_UnreachableServerIsExternalServiceError(t *testing.T) {
	d := NewDispatcher("http://127.0.0.1:0", 100*time.Millisecond, nil, nil)
	err := d.Dispatch(context.Background(), DispatchTask{RunID: "run-1"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeExternalService))
}

// Package callback implements the executor callback sink (spec.md §4.4):
// the single entrypoint through which the executor manager reports run
// progress (messages, tool executions, usage, terminal status, session
// state) back to the backend. Each callback is handled atomically: a Handle
// call opens one transaction, runs every mutation the callback implies
// against it, and commits or aborts it as a unit, so a failure partway
// through never leaves the run, session, and tool-execution tables
// disagreeing with each other.
package callback

import (
	"context"

	"github.com/agentforge/controlplane/internal/apperr"
	dbpkg "github.com/agentforge/controlplane/internal/db"
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/session"
	"github.com/agentforge/controlplane/internal/toolexec"
)

// Kind enumerates the supported callback kinds.
type Kind string

const (
	KindMessageAppended Kind = "message.appended"
	KindToolStarted     Kind = "tool.started"
	KindToolFinished    Kind = "tool.finished"
	KindUsageRecorded   Kind = "usage.recorded"
	KindRunSucceeded    Kind = "run.succeeded"
	KindRunFailed       Kind = "run.failed"
	KindSessionState    Kind = "session.state"
)

// Request is one AgentCallbackRequest as posted by an executor.
type Request struct {
	Kind      Kind           `json:"kind"`
	RunID     string         `json:"run_id"`
	SessionID string         `json:"session_id"`
	Payload   map[string]any `json:"payload"`
}

// Sink dispatches callbacks against a single shared database transaction
// per call, rather than holding fixed run/session/toolexec repositories:
// each Handle opens its own transaction-scoped repository trio so the
// per-kind handler's writes commit or abort together.
type Sink struct {
	pool *dbpkg.Pool
}

func New(pool *dbpkg.Pool) *Sink {
	return &Sink{pool: pool}
}

// txHandlers holds the transaction-scoped repositories for one Handle call.
type txHandlers struct {
	runs     run.Repository
	sessions session.Repository
	tools    toolexec.Repository
}

// Handle dispatches req to the matching per-kind handler inside a single
// transaction. Unknown kinds yield BAD_REQUEST; run/session id mismatches
// surface as NOT_FOUND. Either way the transaction is rolled back, so a
// rejected callback never leaves a partial write behind.
func (s *Sink) Handle(ctx context.Context, req Request) error {
	txPool, err := s.pool.BeginTxx(ctx)
	if err != nil {
		return apperr.Database("begin callback tx", err)
	}
	defer func() { _ = txPool.Rollback() }()

	h := &txHandlers{
		runs:     run.NewSQLRepository(txPool),
		sessions: session.NewSQLRepository(txPool),
		tools:    toolexec.NewSQLRepository(txPool),
	}

	if req.RunID != "" {
		if err := h.verifyRunBelongsToSession(ctx, req.RunID, req.SessionID); err != nil {
			return err
		}
	}

	if err := h.dispatch(ctx, req); err != nil {
		return err
	}

	if err := txPool.Commit(); err != nil {
		return apperr.Database("commit callback tx", err)
	}
	return nil
}

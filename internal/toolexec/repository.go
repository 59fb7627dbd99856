package toolexec

import "context"

// Repository is the data-access contract for ToolExecution and UsageLog.
type Repository interface {
	// Upsert inserts a ToolExecution on first sight of its id (tool.started)
	// or updates it (tool.finished), enforcing monotone started/finished
	// timestamps.
	Upsert(ctx context.Context, te *ToolExecution) error

	Get(ctx context.Context, id string) (*ToolExecution, error)

	// ListByRun returns a run's tool executions, created_at ASC.
	ListByRun(ctx context.Context, runID string) ([]*ToolExecution, error)

	// ListBySession returns a session's tool executions across all its
	// runs, created_at DESC.
	ListBySession(ctx context.Context, sessionID string) ([]*ToolExecution, error)

	AppendUsage(ctx context.Context, u *UsageLog) error

	ListUsageByRun(ctx context.Context, runID string) ([]*UsageLog, error)

	ListUsageBySession(ctx context.Context, sessionID string) ([]*UsageLog, error)
}

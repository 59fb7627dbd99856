package run

import "context"

// Repository is the data-access contract for AgentRun. Implementations take
// no implicit commits — callers that need multiple mutations to be atomic
// wrap them in a single call such as Claim, which owns its own transaction.
type Repository interface {
	// Create inserts a new run in StatusQueued.
	Create(ctx context.Context, r *Run) error

	// Get fetches a run by id. Returns apperr NOT_FOUND if absent.
	Get(ctx context.Context, id string) (*Run, error)

	// ListBySession returns a session's runs, created_at DESC, id DESC.
	ListBySession(ctx context.Context, sessionID string) ([]*Run, error)

	// Claim atomically selects the oldest queued run, marks it claimed with
	// a fresh claim token, and returns it. Returns (nil, nil) when no run
	// is claimable.
	Claim(ctx context.Context, workerID string) (*Run, error)

	// Start transitions claimed -> running if claimToken matches. Returns
	// apperr CONFLICT on token mismatch; no-op (no error) if already
	// running with this token.
	Start(ctx context.Context, runID, claimToken string) (*Run, error)

	// Fail transitions claimed|running -> failed, recording runErr.
	// Returns apperr CONFLICT if the run is already terminal.
	Fail(ctx context.Context, runID, claimToken string, runErr RunError) (*Run, error)

	// Succeed transitions claimed|running -> succeeded. Returns apperr
	// CONFLICT if the run is already terminal.
	Succeed(ctx context.Context, runID string) (*Run, error)

	// Cancel transitions a queued run directly to cancelled without
	// dispatch. Returns apperr CONFLICT if the run is not queued.
	Cancel(ctx context.Context, runID string) (*Run, error)

	// ReleaseOrphaned resets claimed runs whose claimed_at predates the TTL
	// and which never started, back to queued with attempt+1. Returns the
	// number of runs released.
	ReleaseOrphaned(ctx context.Context, claimTTLSeconds int) (int, error)
}

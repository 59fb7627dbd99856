package session

import "context"

// Repository is the data-access contract for Session and Message.
type Repository interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string, includeDeleted bool) (*Session, error)

	// ListSessions returns a user's non-deleted sessions, created_at DESC,
	// id DESC. limit<=0 means "all".
	ListSessions(ctx context.Context, userID string, limit, offset int) ([]*Session, error)

	// SetStatus updates a session's status (driven by its runs' events).
	SetStatus(ctx context.Context, id string, status Status) error

	// SetSDKSessionID writes sdk_session_id the first time it is provided;
	// a no-op once already set (idempotent per design notes).
	SetSDKSessionID(ctx context.Context, id, sdkSessionID string) error

	// PatchState merges patch into state_patch and optionally updates the
	// workspace_* fields (nil pointers leave a field untouched).
	PatchState(ctx context.Context, id string, patch map[string]any, workspace *WorkspacePatch) error

	DeleteSession(ctx context.Context, id string) error

	AppendMessage(ctx context.Context, m *Message) error

	// ListMessages returns a session's messages ordered (created_at, id).
	ListMessages(ctx context.Context, sessionID string) ([]*Message, error)
}

// WorkspacePatch carries the workspace_* fields a session.state callback or
// run.succeeded callback may update. A nil pointer means "leave unchanged".
type WorkspacePatch struct {
	Prefix       *string
	ManifestKey  *string
	ArchiveKey   *string
	ExportStatus *string
}

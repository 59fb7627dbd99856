// Package apiv1 holds the wire-level request/response shapes for the
// backend's HTTP surface (spec.md §6). Handlers translate between these and
// the domain types in internal/{session,run,project,toolexec}; the two are
// kept separate so a request body's validation tags don't leak onto a
// persisted model.
package apiv1

// CreateSessionRequest is the body of POST /sessions.
type CreateSessionRequest struct {
	ProjectID      *string        `json:"project_id,omitempty"`
	ConfigSnapshot map[string]any `json:"config_snapshot"`
}

// CreateProjectRequest is the body of POST /projects.
type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateProjectRequest is the body of PATCH /projects/{id}.
type UpdateProjectRequest struct {
	Name *string `json:"name,omitempty"`
}

// CreateRunRequest is the body of POST /sessions/{id}/runs: a new prompt
// turn on an existing session.
type CreateRunRequest struct {
	UserMessageText string         `json:"user_message_text"`
	ConfigSnapshot  map[string]any `json:"config_snapshot"`
}

// ClaimRunRequest is the body of POST /runs/claim.
type ClaimRunRequest struct {
	WorkerID string `json:"worker_id" binding:"required"`
}

// StartRunRequest is the body of POST /runs/{id}/start.
type StartRunRequest struct {
	ClaimToken   string  `json:"claim_token" binding:"required"`
	SDKSessionID *string `json:"sdk_session_id,omitempty"`
}

// FailRunRequest is the body of POST /runs/{id}/fail.
type FailRunRequest struct {
	ClaimToken string         `json:"claim_token" binding:"required"`
	Code       string         `json:"code" binding:"required"`
	Message    string         `json:"message" binding:"required"`
	Details    map[string]any `json:"details,omitempty"`
}

// CallbackRequest is the body of POST /callback, posted by an executor.
type CallbackRequest struct {
	Kind      string         `json:"kind" binding:"required"`
	RunID     string         `json:"run_id"`
	SessionID string         `json:"session_id"`
	Payload   map[string]any `json:"payload"`
}

// AttachmentUploadResponse is the InputFile descriptor returned by
// POST /attachments/upload.
type AttachmentUploadResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Source      string `json:"source"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// WorkspaceFilesResponse is the body of GET /sessions/{id}/workspace/files.
type WorkspaceFilesResponse struct {
	Files []WorkspaceFile `json:"files"`
}

// WorkspaceFile is one entry in WorkspaceFilesResponse.
type WorkspaceFile struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	IsDir bool   `json:"is_dir"`
}

// Page wraps a list response with the (limit, offset) the caller used,
// matching spec.md §4.5's pagination contract.
type Page[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Package session implements AgentSession and AgentMessage: the user-scoped
// container of messages, runs, and workspace state a prompt conversation
// lives in.
package session

import "time"

// Status is the AgentSession lifecycle state, driven by its runs' events.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Session is a user-scoped container of messages, runs, and workspace
// state. config_snapshot is written at creation; PatchState merges keys into
// state_patch and overwrites each workspace_* field it is given; sdk_session_id
// is supplied by the agent runtime after its first step and never changes
// afterward.
type Session struct {
	ID                    string         `json:"id" db:"id"`
	UserID                string         `json:"user_id" db:"user_id"`
	ProjectID             *string        `json:"project_id,omitempty" db:"project_id"`
	SDKSessionID          *string        `json:"sdk_session_id,omitempty" db:"sdk_session_id"`
	Status                Status         `json:"status" db:"status"`
	ConfigSnapshot        map[string]any `json:"config_snapshot" db:"-"`
	ConfigSnapshotJSON    string         `json:"-" db:"config_snapshot"`
	StatePatch            map[string]any `json:"state_patch,omitempty" db:"-"`
	StatePatchJSON        string         `json:"-" db:"state_patch"`
	WorkspacePrefix       *string        `json:"workspace_prefix,omitempty" db:"workspace_prefix"`
	WorkspaceManifestKey  *string        `json:"workspace_manifest_key,omitempty" db:"workspace_manifest_key"`
	WorkspaceArchiveKey   *string        `json:"workspace_archive_key,omitempty" db:"workspace_archive_key"`
	WorkspaceExportStatus *string        `json:"workspace_export_status,omitempty" db:"workspace_export_status"`
	IsDeleted             bool           `json:"-" db:"is_deleted"`
	CreatedAt             time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at" db:"updated_at"`
}

// Role is who authored an AgentMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn in a session's conversation.
type Message struct {
	ID          int64          `json:"id" db:"id"`
	SessionID   string         `json:"session_id" db:"session_id"`
	Role        Role           `json:"role" db:"role"`
	Content     map[string]any `json:"content" db:"-"`
	ContentJSON string         `json:"-" db:"content"`
	TextPreview *string        `json:"text_preview,omitempty" db:"text_preview"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

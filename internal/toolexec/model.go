// Package toolexec implements ToolExecution and UsageLog: per-run records
// of tool invocations and token usage the executor reports via callback.
package toolexec

import "time"

// Status mirrors the lifecycle of a single tool invocation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ToolExecution is one tool call made during a run.
type ToolExecution struct {
	ID          string         `json:"id" db:"id"`
	SessionID   string         `json:"session_id" db:"session_id"`
	RunID       string         `json:"run_id" db:"run_id"`
	ToolName    string         `json:"tool_name" db:"tool_name"`
	Input       map[string]any `json:"input" db:"-"`
	InputJSON   string         `json:"-" db:"input"`
	Output      map[string]any `json:"output,omitempty" db:"-"`
	OutputJSON  *string        `json:"-" db:"output"`
	Error       map[string]any `json:"error,omitempty" db:"-"`
	ErrorJSON   *string        `json:"-" db:"error"`
	Status      Status         `json:"status" db:"status"`
	StartedAt   *time.Time     `json:"started_at,omitempty" db:"started_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty" db:"finished_at"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// UsageLog is an append-only token-usage record for a run or tool call.
type UsageLog struct {
	ID              int64     `json:"id" db:"id"`
	RunID           string    `json:"run_id" db:"run_id"`
	ToolExecutionID *string   `json:"tool_execution_id,omitempty" db:"tool_execution_id"`
	InputTokens     int       `json:"input_tokens" db:"input_tokens"`
	OutputTokens    int       `json:"output_tokens" db:"output_tokens"`
	TotalTokens     int       `json:"total_tokens" db:"total_tokens"`
	RecordedAt      time.Time `json:"recorded_at" db:"recorded_at"`
}

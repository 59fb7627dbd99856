package callback

import (
	"context"
	"time"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/session"
	"github.com/agentforge/controlplane/internal/toolexec"
)

// dispatch routes req to its per-kind handler. All handlers run against the
// same transaction-scoped repositories in h, so their writes are part of
// the one transaction Handle commits or aborts.
func (h *txHandlers) dispatch(ctx context.Context, req Request) error {
	switch req.Kind {
	case KindMessageAppended:
		return h.handleMessageAppended(ctx, req)
	case KindToolStarted, KindToolFinished:
		return h.handleToolExecution(ctx, req)
	case KindUsageRecorded:
		return h.handleUsageRecorded(ctx, req)
	case KindRunSucceeded:
		return h.handleRunSucceeded(ctx, req)
	case KindRunFailed:
		return h.handleRunFailed(ctx, req)
	case KindSessionState:
		return h.handleSessionState(ctx, req)
	default:
		return apperr.BadRequest("unknown callback kind: " + string(req.Kind))
	}
}

// verifyRunBelongsToSession rejects a callback whose run_id/session_id pair
// doesn't match the stored run, surfacing NOT_FOUND rather than silently
// mutating the wrong session.
func (h *txHandlers) verifyRunBelongsToSession(ctx context.Context, runID, sessionID string) error {
	r, err := h.runs.Get(ctx, runID)
	if err != nil {
		return err
	}
	if sessionID != "" && r.SessionID != sessionID {
		return apperr.NotFound("run", runID)
	}
	return nil
}

func (h *txHandlers) handleMessageAppended(ctx context.Context, req Request) error {
	role, _ := req.Payload["role"].(string)
	content, _ := req.Payload["content"].(map[string]any)

	msg := &session.Message{
		SessionID: req.SessionID,
		Role:      session.Role(role),
		Content:   content,
	}
	if preview, ok := req.Payload["text_preview"].(string); ok {
		msg.TextPreview = &preview
	}
	if err := h.sessions.AppendMessage(ctx, msg); err != nil {
		return err
	}

	if patch, ok := req.Payload["state_patch"].(map[string]any); ok {
		if err := h.sessions.PatchState(ctx, req.SessionID, patch, nil); err != nil {
			return err
		}
	}
	return nil
}

func (h *txHandlers) handleToolExecution(ctx context.Context, req Request) error {
	id, _ := req.Payload["id"].(string)
	if id == "" {
		return apperr.BadRequest("tool execution callback missing id")
	}
	toolName, _ := req.Payload["tool_name"].(string)

	te := &toolexec.ToolExecution{
		ID:        id,
		SessionID: req.SessionID,
		RunID:     req.RunID,
		ToolName:  toolName,
		Status:    toolexec.StatusRunning,
	}
	if input, ok := req.Payload["input"].(map[string]any); ok {
		te.Input = input
	}
	if output, ok := req.Payload["output"].(map[string]any); ok {
		te.Output = output
	}
	if errPayload, ok := req.Payload["error"].(map[string]any); ok {
		te.Error = errPayload
	}

	now := time.Now()
	switch req.Kind {
	case KindToolStarted:
		te.StartedAt = &now
	case KindToolFinished:
		te.FinishedAt = &now
		if te.Error != nil {
			te.Status = toolexec.StatusFailed
		} else {
			te.Status = toolexec.StatusSucceeded
		}
	}

	return h.tools.Upsert(ctx, te)
}

func (h *txHandlers) handleUsageRecorded(ctx context.Context, req Request) error {
	u := &toolexec.UsageLog{RunID: req.RunID}
	if v, ok := req.Payload["tool_execution_id"].(string); ok && v != "" {
		u.ToolExecutionID = &v
	}
	u.InputTokens = intPayload(req.Payload, "input_tokens")
	u.OutputTokens = intPayload(req.Payload, "output_tokens")
	u.TotalTokens = intPayload(req.Payload, "total_tokens")
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return h.tools.AppendUsage(ctx, u)
}

func intPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func (h *txHandlers) handleRunSucceeded(ctx context.Context, req Request) error {
	if _, err := h.runs.Succeed(ctx, req.RunID); err != nil {
		return err
	}
	if err := h.sessions.SetStatus(ctx, req.SessionID, session.StatusCompleted); err != nil {
		return err
	}
	return h.applyWorkspaceExport(ctx, req)
}

func (h *txHandlers) handleRunFailed(ctx context.Context, req Request) error {
	claimToken, _ := req.Payload["claim_token"].(string)
	runErr := run.RunError{
		Code:    stringPayload(req.Payload, "code", "EXTERNAL_SERVICE_ERROR"),
		Message: stringPayload(req.Payload, "message", "run failed"),
	}
	if details, ok := req.Payload["details"].(map[string]any); ok {
		runErr.Details = details
	}

	if _, err := h.runs.Fail(ctx, req.RunID, claimToken, runErr); err != nil {
		return err
	}
	return h.sessions.SetStatus(ctx, req.SessionID, session.StatusFailed)
}

func stringPayload(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// applyWorkspaceExport persists workspace_export keys/status from a
// run.succeeded payload, composing the §E.3.5 read path.
func (h *txHandlers) applyWorkspaceExport(ctx context.Context, req Request) error {
	export, ok := req.Payload["workspace_export"].(map[string]any)
	if !ok {
		return nil
	}

	patch := &session.WorkspacePatch{}
	if v, ok := export["prefix"].(string); ok {
		patch.Prefix = &v
	}
	if v, ok := export["manifest_key"].(string); ok {
		patch.ManifestKey = &v
	}
	if v, ok := export["archive_key"].(string); ok {
		patch.ArchiveKey = &v
	}
	if v, ok := export["status"].(string); ok {
		patch.ExportStatus = &v
	}
	return h.sessions.PatchState(ctx, req.SessionID, map[string]any{}, patch)
}

func (h *txHandlers) handleSessionState(ctx context.Context, req Request) error {
	if sdkSessionID, ok := req.Payload["sdk_session_id"].(string); ok && sdkSessionID != "" {
		if err := h.sessions.SetSDKSessionID(ctx, req.SessionID, sdkSessionID); err != nil {
			return err
		}
	}

	patch, _ := req.Payload["state_patch"].(map[string]any)
	workspace := &session.WorkspacePatch{}
	hasWorkspace := false
	if v, ok := req.Payload["workspace_prefix"].(string); ok {
		workspace.Prefix = &v
		hasWorkspace = true
	}
	if v, ok := req.Payload["workspace_manifest_key"].(string); ok {
		workspace.ManifestKey = &v
		hasWorkspace = true
	}
	if v, ok := req.Payload["workspace_archive_key"].(string); ok {
		workspace.ArchiveKey = &v
		hasWorkspace = true
	}
	if v, ok := req.Payload["workspace_export_status"].(string); ok {
		workspace.ExportStatus = &v
		hasWorkspace = true
	}
	if !hasWorkspace {
		workspace = nil
	}

	if patch == nil && workspace == nil {
		return nil
	}
	if patch == nil {
		patch = map[string]any{}
	}
	return h.sessions.PatchState(ctx, req.SessionID, patch, workspace)
}

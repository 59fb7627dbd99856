package toolexec

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/agentforge/controlplane/internal/apperr"
	dbpkg "github.com/agentforge/controlplane/internal/db"
)

// SQLRepository is the dialect-portable Repository backed by a db.Pool.
type SQLRepository struct {
	pool *dbpkg.Pool
}

var _ Repository = (*SQLRepository)(nil)

func NewSQLRepository(pool *dbpkg.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

// Upsert enforces monotone timestamps: a tool.finished callback arriving
// before tool.started (started_at still null) still records finished_at,
// but a finished_at already set is never overwritten by an earlier value.
func (s *SQLRepository) Upsert(ctx context.Context, te *ToolExecution) error {
	inputJSON, err := json.Marshal(te.Input)
	if err != nil {
		return apperr.Wrap(err, "marshal tool input")
	}
	var outputJSON, errorJSON *string
	if te.Output != nil {
		b, err := json.Marshal(te.Output)
		if err != nil {
			return apperr.Wrap(err, "marshal tool output")
		}
		s := string(b)
		outputJSON = &s
	}
	if te.Error != nil {
		b, err := json.Marshal(te.Error)
		if err != nil {
			return apperr.Wrap(err, "marshal tool error")
		}
		s := string(b)
		errorJSON = &s
	}

	existing, err := s.Get(ctx, te.ID)
	if err != nil && !apperr.Is(err, apperr.CodeNotFound) {
		return err
	}

	if existing == nil {
		query := s.pool.Writer().Rebind(`
			INSERT INTO tool_executions (id, session_id, run_id, tool_name, input, output, error, status, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		_, err = s.pool.Writer().ExecContext(ctx, query,
			te.ID, te.SessionID, te.RunID, te.ToolName, string(inputJSON), outputJSON, errorJSON, string(te.Status), te.StartedAt, te.FinishedAt)
		if err != nil {
			return apperr.Database("insert tool execution", err)
		}
		return nil
	}

	if te.StartedAt == nil {
		te.StartedAt = existing.StartedAt
	}
	if existing.FinishedAt != nil {
		te.FinishedAt = existing.FinishedAt
	}

	query := s.pool.Writer().Rebind(`
		UPDATE tool_executions
		SET output = COALESCE(?, output), error = COALESCE(?, error), status = ?, started_at = ?, finished_at = ?
		WHERE id = ?`)
	_, err = s.pool.Writer().ExecContext(ctx, query, outputJSON, errorJSON, string(te.Status), te.StartedAt, te.FinishedAt, te.ID)
	if err != nil {
		return apperr.Database("update tool execution", err)
	}
	return nil
}

func (s *SQLRepository) Get(ctx context.Context, id string) (*ToolExecution, error) {
	var row ToolExecution
	query := s.pool.Reader().Rebind(`SELECT * FROM tool_executions WHERE id = ?`)
	if err := s.pool.Reader().GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("tool_execution", id)
		}
		return nil, apperr.Database("get tool execution", err)
	}
	if err := decodeJSON(&row); err != nil {
		return nil, err
	}
	return &row, nil
}

func decodeJSON(te *ToolExecution) error {
	if te.InputJSON != "" {
		if err := json.Unmarshal([]byte(te.InputJSON), &te.Input); err != nil {
			return apperr.Wrap(err, "decode tool input")
		}
	}
	if te.OutputJSON != nil && *te.OutputJSON != "" {
		if err := json.Unmarshal([]byte(*te.OutputJSON), &te.Output); err != nil {
			return apperr.Wrap(err, "decode tool output")
		}
	}
	if te.ErrorJSON != nil && *te.ErrorJSON != "" {
		if err := json.Unmarshal([]byte(*te.ErrorJSON), &te.Error); err != nil {
			return apperr.Wrap(err, "decode tool error")
		}
	}
	return nil
}

func (s *SQLRepository) ListByRun(ctx context.Context, runID string) ([]*ToolExecution, error) {
	return s.list(ctx, `SELECT * FROM tool_executions WHERE run_id = ? ORDER BY created_at ASC`, runID)
}

func (s *SQLRepository) ListBySession(ctx context.Context, sessionID string) ([]*ToolExecution, error) {
	return s.list(ctx, `SELECT * FROM tool_executions WHERE session_id = ? ORDER BY created_at DESC`, sessionID)
}

func (s *SQLRepository) list(ctx context.Context, query, arg string) ([]*ToolExecution, error) {
	var rows []*ToolExecution
	if err := s.pool.Reader().SelectContext(ctx, &rows, s.pool.Reader().Rebind(query), arg); err != nil {
		return nil, apperr.Database("list tool executions", err)
	}
	for _, r := range rows {
		if err := decodeJSON(r); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (s *SQLRepository) AppendUsage(ctx context.Context, u *UsageLog) error {
	query := s.pool.Writer().Rebind(`
		INSERT INTO usage_logs (run_id, tool_execution_id, input_tokens, output_tokens, total_tokens)
		VALUES (?, ?, ?, ?, ?)`)
	_, err := s.pool.Writer().ExecContext(ctx, query, u.RunID, u.ToolExecutionID, u.InputTokens, u.OutputTokens, u.TotalTokens)
	if err != nil {
		return apperr.Database("append usage log", err)
	}
	return nil
}

func (s *SQLRepository) ListUsageByRun(ctx context.Context, runID string) ([]*UsageLog, error) {
	var rows []*UsageLog
	query := s.pool.Reader().Rebind(`SELECT * FROM usage_logs WHERE run_id = ? ORDER BY recorded_at`)
	if err := s.pool.Reader().SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, apperr.Database("list usage by run", err)
	}
	return rows, nil
}

func (s *SQLRepository) ListUsageBySession(ctx context.Context, sessionID string) ([]*UsageLog, error) {
	var rows []*UsageLog
	query := s.pool.Reader().Rebind(`
		SELECT usage_logs.* FROM usage_logs
		JOIN agent_runs ON agent_runs.id = usage_logs.run_id
		WHERE agent_runs.session_id = ?
		ORDER BY usage_logs.recorded_at`)
	if err := s.pool.Reader().SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, apperr.Database("list usage by session", err)
	}
	return rows, nil
}

package run

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentforge/controlplane/internal/apperr"
	dbpkg "github.com/agentforge/controlplane/internal/db"
	"github.com/agentforge/controlplane/internal/db/dialect"
)

// SQLRepository is the dialect-portable Repository backed by a db.Pool.
type SQLRepository struct {
	pool *dbpkg.Pool
}

var _ Repository = (*SQLRepository)(nil)

func NewSQLRepository(pool *dbpkg.Pool) *SQLRepository {
	return &SQLRepository{pool: pool}
}

type runRow struct {
	ID             string         `db:"id"`
	SessionID      string         `db:"session_id"`
	UserMessageID  sql.NullInt64  `db:"user_message_id"`
	Status         string         `db:"status"`
	ConfigSnapshot string         `db:"config_snapshot"`
	ClaimToken     sql.NullString `db:"claim_token"`
	ClaimedAt      sql.NullTime   `db:"claimed_at"`
	StartedAt      sql.NullTime   `db:"started_at"`
	FinishedAt     sql.NullTime   `db:"finished_at"`
	Error          sql.NullString `db:"error"`
	Attempt        int            `db:"attempt"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (row *runRow) toModel() (*Run, error) {
	r := &Run{
		ID:        row.ID,
		SessionID: row.SessionID,
		Status:    Status(row.Status),
		Attempt:   row.Attempt,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.UserMessageID.Valid {
		v := row.UserMessageID.Int64
		r.UserMessageID = &v
	}
	if row.ClaimToken.Valid {
		v := row.ClaimToken.String
		r.ClaimToken = &v
	}
	if row.ClaimedAt.Valid {
		v := row.ClaimedAt.Time
		r.ClaimedAt = &v
	}
	if row.StartedAt.Valid {
		v := row.StartedAt.Time
		r.StartedAt = &v
	}
	if row.FinishedAt.Valid {
		v := row.FinishedAt.Time
		r.FinishedAt = &v
	}
	if row.Error.Valid && row.Error.String != "" {
		var e RunError
		if err := json.Unmarshal([]byte(row.Error.String), &e); err != nil {
			return nil, fmt.Errorf("decode run error: %w", err)
		}
		r.Error = &e
	}
	var cfg map[string]any
	if row.ConfigSnapshot != "" {
		if err := json.Unmarshal([]byte(row.ConfigSnapshot), &cfg); err != nil {
			return nil, fmt.Errorf("decode config snapshot: %w", err)
		}
	}
	r.ConfigSnapshot = cfg
	return r, nil
}

func (s *SQLRepository) Create(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	cfg, err := json.Marshal(r.ConfigSnapshot)
	if err != nil {
		return apperr.Wrap(err, "marshal config snapshot")
	}
	r.Status = StatusQueued

	query := s.pool.Writer().Rebind(`
		INSERT INTO agent_runs (id, session_id, user_message_id, status, config_snapshot, attempt)
		VALUES (?, ?, ?, ?, ?, 0)`)
	_, err = s.pool.Writer().ExecContext(ctx, query, r.ID, r.SessionID, r.UserMessageID, string(r.Status), string(cfg))
	if err != nil {
		return apperr.Database("create run", err)
	}
	return nil
}

func (s *SQLRepository) Get(ctx context.Context, id string) (*Run, error) {
	var row runRow
	query := s.pool.Reader().Rebind(`SELECT * FROM agent_runs WHERE id = ?`)
	if err := s.pool.Reader().GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("run", id)
		}
		return nil, apperr.Database("get run", err)
	}
	return row.toModel()
}

func (s *SQLRepository) ListBySession(ctx context.Context, sessionID string) ([]*Run, error) {
	var rows []runRow
	query := s.pool.Reader().Rebind(`
		SELECT * FROM agent_runs WHERE session_id = ? ORDER BY created_at DESC, id DESC`)
	if err := s.pool.Reader().SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, apperr.Database("list runs by session", err)
	}
	return rowsToModels(rows)
}

func rowsToModels(rows []runRow) ([]*Run, error) {
	out := make([]*Run, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Claim implements the §4.1 single-flight claim: the oldest queued run is
// selected under a row lock and atomically flipped to claimed in one
// transaction. On Postgres this uses FOR UPDATE SKIP LOCKED so concurrent
// claimants never block on each other, only on the row they're about to
// take; on SQLite the single writer connection already serializes this
// transaction against every other writer, giving the same guarantee without
// the clause.
func (s *SQLRepository) Claim(ctx context.Context, workerID string) (*Run, error) {
	txPool, err := s.pool.BeginTxx(ctx)
	if err != nil {
		return nil, apperr.Database("begin claim tx", err)
	}
	defer func() { _ = txPool.Rollback() }()

	selectQuery := `SELECT * FROM agent_runs WHERE status = 'queued' ORDER BY created_at ASC, id ASC LIMIT 1`
	if dialect.IsPostgres(s.pool.Driver()) {
		selectQuery += " FOR UPDATE SKIP LOCKED"
	}

	var row runRow
	if err := txPool.Writer().GetContext(ctx, &row, selectQuery); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Database("select claimable run", err)
	}

	token := uuid.NewString()
	updateQuery := txPool.Writer().Rebind(`
		UPDATE agent_runs
		SET status = 'claimed', claim_token = ?, claimed_at = ` + dialect.Now(s.pool.Driver()) + `
		WHERE id = ? AND status = 'queued'`)
	res, err := txPool.Writer().ExecContext(ctx, updateQuery, token, row.ID)
	if err != nil {
		return nil, apperr.Database("claim run", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, apperr.Database("claim run rows affected", err)
	}
	if affected == 0 {
		// Lost the race (sqlite path has no row lock between select/update);
		// caller retries on the next poll tick.
		return nil, nil
	}

	if err := txPool.Commit(); err != nil {
		return nil, apperr.Database("commit claim tx", err)
	}

	return s.Get(ctx, row.ID)
}

func (s *SQLRepository) Start(ctx context.Context, runID, claimToken string) (*Run, error) {
	current, err := s.Get(ctx, runID)
	if err != nil {
		return nil, err
	}

	if current.ClaimToken == nil || *current.ClaimToken != claimToken {
		return nil, apperr.Conflict("claim token mismatch")
	}
	if current.Status == StatusRunning {
		return current, nil
	}
	if current.Status.IsTerminal() || current.Status != StatusClaimed {
		return nil, apperr.Conflict(fmt.Sprintf("cannot start run from status %q", current.Status))
	}

	query := s.pool.Writer().Rebind(`
		UPDATE agent_runs SET status = 'running', started_at = ` + dialect.Now(s.pool.Driver()) + `
		WHERE id = ? AND claim_token = ? AND status = 'claimed'`)
	res, err := s.pool.Writer().ExecContext(ctx, query, runID, claimToken)
	if err != nil {
		return nil, apperr.Database("start run", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, apperr.Conflict("run already transitioned")
	}

	return s.Get(ctx, runID)
}

func (s *SQLRepository) Fail(ctx context.Context, runID, claimToken string, runErr RunError) (*Run, error) {
	current, err := s.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, apperr.Conflict(fmt.Sprintf("run %s is already terminal (%s)", runID, current.Status))
	}
	if current.ClaimToken == nil || *current.ClaimToken != claimToken {
		return nil, apperr.Conflict("claim token mismatch")
	}

	errJSON, err := json.Marshal(runErr)
	if err != nil {
		return nil, apperr.Wrap(err, "marshal run error")
	}

	query := s.pool.Writer().Rebind(`
		UPDATE agent_runs SET status = 'failed', finished_at = ` + dialect.Now(s.pool.Driver()) + `, error = ?
		WHERE id = ? AND claim_token = ? AND status IN ('claimed', 'running')`)
	res, err := s.pool.Writer().ExecContext(ctx, query, string(errJSON), runID, claimToken)
	if err != nil {
		return nil, apperr.Database("fail run", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, apperr.Conflict("run already transitioned")
	}

	return s.Get(ctx, runID)
}

func (s *SQLRepository) Succeed(ctx context.Context, runID string) (*Run, error) {
	current, err := s.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, apperr.Conflict(fmt.Sprintf("run %s is already terminal (%s)", runID, current.Status))
	}

	query := s.pool.Writer().Rebind(`
		UPDATE agent_runs SET status = 'succeeded', finished_at = ` + dialect.Now(s.pool.Driver()) + `
		WHERE id = ? AND status IN ('claimed', 'running')`)
	res, err := s.pool.Writer().ExecContext(ctx, query, runID)
	if err != nil {
		return nil, apperr.Database("succeed run", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, apperr.Conflict("run already transitioned")
	}

	return s.Get(ctx, runID)
}

func (s *SQLRepository) Cancel(ctx context.Context, runID string) (*Run, error) {
	query := s.pool.Writer().Rebind(`
		UPDATE agent_runs SET status = 'cancelled', finished_at = ` + dialect.Now(s.pool.Driver()) + `
		WHERE id = ? AND status = 'queued'`)
	res, err := s.pool.Writer().ExecContext(ctx, query, runID)
	if err != nil {
		return nil, apperr.Database("cancel run", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, apperr.Conflict("run is not queued")
	}
	return s.Get(ctx, runID)
}

// ReleaseOrphaned implements §4.1 Release: claimed runs whose claimed_at
// predates claimTTLSeconds and which never started are reset to queued.
func (s *SQLRepository) ReleaseOrphaned(ctx context.Context, claimTTLSeconds int) (int, error) {
	threshold := dialect.NowMinusSeconds(s.pool.Driver(), fmt.Sprintf("%d", claimTTLSeconds))
	query := fmt.Sprintf(`
		UPDATE agent_runs
		SET status = 'queued', claim_token = NULL, claimed_at = NULL, attempt = attempt + 1
		WHERE status = 'claimed' AND started_at IS NULL AND claimed_at <= %s`, threshold)
	res, err := s.pool.Writer().ExecContext(ctx, query)
	if err != nil {
		return 0, apperr.Database("release orphaned runs", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Database("release orphaned rows affected", err)
	}
	return int(affected), nil
}

package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
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

func deletedFalse(driver string) string {
	if dialect.IsPostgres(driver) {
		return "FALSE"
	}
	return "0"
}

func (s *SQLRepository) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	cfg, err := json.Marshal(sess.ConfigSnapshot)
	if err != nil {
		return apperr.Wrap(err, "marshal config snapshot")
	}
	if sess.Status == "" {
		sess.Status = StatusPending
	}

	query := s.pool.Writer().Rebind(`
		INSERT INTO agent_sessions (id, user_id, project_id, status, config_snapshot, state_patch)
		VALUES (?, ?, ?, ?, ?, '{}')`)
	_, err = s.pool.Writer().ExecContext(ctx, query, sess.ID, sess.UserID, sess.ProjectID, string(sess.Status), string(cfg))
	if err != nil {
		return apperr.Database("create session", err)
	}
	return nil
}

func (s *SQLRepository) GetSession(ctx context.Context, id string, includeDeleted bool) (*Session, error) {
	query := `SELECT * FROM agent_sessions WHERE id = ?`
	if !includeDeleted {
		query += ` AND is_deleted = ` + deletedFalse(s.pool.Driver())
	}
	query = s.pool.Reader().Rebind(query)

	var sess Session
	if err := s.pool.Reader().GetContext(ctx, &sess, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("session", id)
		}
		return nil, apperr.Database("get session", err)
	}
	if err := decodeSessionJSON(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func decodeSessionJSON(sess *Session) error {
	if sess.ConfigSnapshotJSON != "" {
		if err := json.Unmarshal([]byte(sess.ConfigSnapshotJSON), &sess.ConfigSnapshot); err != nil {
			return apperr.Wrap(err, "decode session config_snapshot")
		}
	}
	if sess.StatePatchJSON != "" {
		if err := json.Unmarshal([]byte(sess.StatePatchJSON), &sess.StatePatch); err != nil {
			return apperr.Wrap(err, "decode session state_patch")
		}
	}
	return nil
}

func (s *SQLRepository) ListSessions(ctx context.Context, userID string, limit, offset int) ([]*Session, error) {
	query := `
		SELECT * FROM agent_sessions
		WHERE user_id = ? AND is_deleted = ` + deletedFalse(s.pool.Driver()) + `
		ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	query = s.pool.Reader().Rebind(query)

	var rows []*Session
	if err := s.pool.Reader().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperr.Database("list sessions", err)
	}
	for _, r := range rows {
		if err := decodeSessionJSON(r); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (s *SQLRepository) SetStatus(ctx context.Context, id string, status Status) error {
	query := s.pool.Writer().Rebind(`
		UPDATE agent_sessions SET status = ?, updated_at = ` + dialect.Now(s.pool.Driver()) + ` WHERE id = ?`)
	res, err := s.pool.Writer().ExecContext(ctx, query, string(status), id)
	if err != nil {
		return apperr.Database("set session status", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.NotFound("session", id)
	}
	return nil
}

// SetSDKSessionID is idempotent: it only writes the id while the column is
// still null, matching the "set once" design note.
func (s *SQLRepository) SetSDKSessionID(ctx context.Context, id, sdkSessionID string) error {
	query := s.pool.Writer().Rebind(`
		UPDATE agent_sessions SET sdk_session_id = ?, updated_at = ` + dialect.Now(s.pool.Driver()) + `
		WHERE id = ? AND sdk_session_id IS NULL`)
	_, err := s.pool.Writer().ExecContext(ctx, query, sdkSessionID, id)
	if err != nil {
		return apperr.Database("set sdk session id", err)
	}
	return nil
}

func (s *SQLRepository) PatchState(ctx context.Context, id string, patch map[string]any, workspace *WorkspacePatch) error {
	current, err := s.GetSession(ctx, id, true)
	if err != nil {
		return err
	}

	merged := current.StatePatch
	if merged == nil {
		merged = map[string]any{}
	}
	for k, v := range patch {
		merged[k] = v
	}
	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return apperr.Wrap(err, "marshal merged state_patch")
	}

	set := []string{"state_patch = ?", "updated_at = " + dialect.Now(s.pool.Driver())}
	args := []any{string(mergedJSON)}
	if workspace != nil {
		if workspace.Prefix != nil {
			set = append(set, "workspace_prefix = ?")
			args = append(args, *workspace.Prefix)
		}
		if workspace.ManifestKey != nil {
			set = append(set, "workspace_manifest_key = ?")
			args = append(args, *workspace.ManifestKey)
		}
		if workspace.ArchiveKey != nil {
			set = append(set, "workspace_archive_key = ?")
			args = append(args, *workspace.ArchiveKey)
		}
		if workspace.ExportStatus != nil {
			set = append(set, "workspace_export_status = ?")
			args = append(args, *workspace.ExportStatus)
		}
	}
	args = append(args, id)

	query := "UPDATE agent_sessions SET " + joinSet(set) + " WHERE id = ?"
	query = s.pool.Writer().Rebind(query)
	res, err := s.pool.Writer().ExecContext(ctx, query, args...)
	if err != nil {
		return apperr.Database("patch session state", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.NotFound("session", id)
	}
	return nil
}

func joinSet(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

func (s *SQLRepository) DeleteSession(ctx context.Context, id string) error {
	deletedTrue := "1"
	if dialect.IsPostgres(s.pool.Driver()) {
		deletedTrue = "TRUE"
	}
	query := s.pool.Writer().Rebind(`
		UPDATE agent_sessions SET is_deleted = ` + deletedTrue + `, updated_at = ` + dialect.Now(s.pool.Driver()) + `
		WHERE id = ?`)
	res, err := s.pool.Writer().ExecContext(ctx, query, id)
	if err != nil {
		return apperr.Database("delete session", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.NotFound("session", id)
	}
	return nil
}

func (s *SQLRepository) AppendMessage(ctx context.Context, m *Message) error {
	content, err := json.Marshal(m.Content)
	if err != nil {
		return apperr.Wrap(err, "marshal message content")
	}

	id, err := dialect.InsertReturningID(ctx, s.pool.Writer(), `
		INSERT INTO agent_messages (session_id, role, content, text_preview)
		VALUES (?, ?, ?, ?)`, m.SessionID, string(m.Role), string(content), m.TextPreview)
	if err != nil {
		return apperr.Database("append message", err)
	}
	m.ID = id
	return nil
}

func (s *SQLRepository) ListMessages(ctx context.Context, sessionID string) ([]*Message, error) {
	query := s.pool.Reader().Rebind(`
		SELECT * FROM agent_messages WHERE session_id = ? ORDER BY created_at, id`)
	var rows []*msgRow
	if err := s.pool.Reader().SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, apperr.Database("list messages", err)
	}
	out := make([]*Message, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

type msgRow struct {
	ID          int64     `db:"id"`
	SessionID   string    `db:"session_id"`
	Role        string    `db:"role"`
	Content     string    `db:"content"`
	TextPreview *string   `db:"text_preview"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r *msgRow) toModel() (*Message, error) {
	m := &Message{
		ID:          r.ID,
		SessionID:   r.SessionID,
		Role:        Role(r.Role),
		TextPreview: r.TextPreview,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Content != "" {
		if err := json.Unmarshal([]byte(r.Content), &m.Content); err != nil {
			return nil, apperr.Wrap(err, "decode message content")
		}
	}
	return m, nil
}

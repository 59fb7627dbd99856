package preset

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/agentforge/controlplane/internal/apperr"
	dbpkg "github.com/agentforge/controlplane/internal/db"
)

// SQLMcpRepository is the dialect-portable McpRepository backed by a db.Pool.
type SQLMcpRepository struct {
	pool *dbpkg.Pool
}

var _ McpRepository = (*SQLMcpRepository)(nil)

func NewSQLMcpRepository(pool *dbpkg.Pool) *SQLMcpRepository {
	return &SQLMcpRepository{pool: pool}
}

func (s *SQLMcpRepository) Get(ctx context.Context, id string) (*McpPreset, error) {
	var row McpPreset
	query := s.pool.Reader().Rebind(`SELECT * FROM mcp_presets WHERE id = ?`)
	if err := s.pool.Reader().GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("mcp_preset", id)
		}
		return nil, apperr.Database("get mcp preset", err)
	}
	if err := json.Unmarshal([]byte(row.ConfigRaw), &row.Config); err != nil {
		return nil, apperr.Wrap(err, "decode mcp preset config")
	}
	return &row, nil
}

func (s *SQLMcpRepository) List(ctx context.Context) ([]*McpPreset, error) {
	var rows []*McpPreset
	query := `SELECT * FROM mcp_presets ORDER BY name`
	if err := s.pool.Reader().SelectContext(ctx, &rows, query); err != nil {
		return nil, apperr.Database("list mcp presets", err)
	}
	for _, r := range rows {
		if err := json.Unmarshal([]byte(r.ConfigRaw), &r.Config); err != nil {
			return nil, apperr.Wrap(err, "decode mcp preset config")
		}
	}
	return rows, nil
}

func (s *SQLMcpRepository) GetUserConfig(ctx context.Context, userID, presetID string) (*UserMcpConfig, error) {
	var row UserMcpConfig
	query := s.pool.Reader().Rebind(`
		SELECT * FROM user_mcp_configs WHERE user_id = ? AND preset_id = ?`)
	if err := s.pool.Reader().GetContext(ctx, &row, query, userID, presetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user_mcp_config", presetID)
		}
		return nil, apperr.Database("get user mcp config", err)
	}
	if err := json.Unmarshal([]byte(row.OverridesRaw), &row.Overrides); err != nil {
		return nil, apperr.Wrap(err, "decode user mcp config overrides")
	}
	return &row, nil
}

// MergedConfig layers a user's overrides onto the preset's template config.
// A missing user override is not an error: the template config is returned
// unmodified.
func (s *SQLMcpRepository) MergedConfig(ctx context.Context, userID, presetID string) (map[string]any, error) {
	presetRow, err := s.Get(ctx, presetID)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]any, len(presetRow.Config))
	for k, v := range presetRow.Config {
		merged[k] = v
	}

	override, err := s.GetUserConfig(ctx, userID, presetID)
	if err != nil && !apperr.Is(err, apperr.CodeNotFound) {
		return nil, err
	}
	if override != nil {
		for k, v := range override.Overrides {
			merged[k] = v
		}
	}
	return merged, nil
}

// SQLSkillRepository is the dialect-portable SkillRepository backed by a
// db.Pool.
type SQLSkillRepository struct {
	pool *dbpkg.Pool
}

var _ SkillRepository = (*SQLSkillRepository)(nil)

func NewSQLSkillRepository(pool *dbpkg.Pool) *SQLSkillRepository {
	return &SQLSkillRepository{pool: pool}
}

func (s *SQLSkillRepository) Get(ctx context.Context, id string) (*SkillPreset, error) {
	var row SkillPreset
	query := s.pool.Reader().Rebind(`SELECT * FROM skill_presets WHERE id = ?`)
	if err := s.pool.Reader().GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("skill_preset", id)
		}
		return nil, apperr.Database("get skill preset", err)
	}
	if err := json.Unmarshal([]byte(row.EntriesRaw), &row.Entries); err != nil {
		return nil, apperr.Wrap(err, "decode skill preset entries")
	}
	return &row, nil
}

func (s *SQLSkillRepository) List(ctx context.Context) ([]*SkillPreset, error) {
	var rows []*SkillPreset
	query := `SELECT * FROM skill_presets ORDER BY name`
	if err := s.pool.Reader().SelectContext(ctx, &rows, query); err != nil {
		return nil, apperr.Database("list skill presets", err)
	}
	for _, r := range rows {
		if err := json.Unmarshal([]byte(r.EntriesRaw), &r.Entries); err != nil {
			return nil, apperr.Wrap(err, "decode skill preset entries")
		}
	}
	return rows, nil
}

func (s *SQLSkillRepository) ListInstalled(ctx context.Context, userID string) ([]*UserSkillInstall, error) {
	var rows []*UserSkillInstall
	query := s.pool.Reader().Rebind(`
		SELECT * FROM user_skill_installs WHERE user_id = ? ORDER BY preset_id`)
	if err := s.pool.Reader().SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, apperr.Database("list installed skills", err)
	}
	return rows, nil
}

func (s *SQLSkillRepository) ListEnabledPresetIDs(ctx context.Context, userID string) ([]string, error) {
	installs, err := s.ListInstalled(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(installs))
	for _, inst := range installs {
		if inst.Enabled {
			ids = append(ids, inst.PresetID)
		}
	}
	return ids, nil
}

func (s *SQLSkillRepository) Entries(ctx context.Context, userID, presetID string) (map[string]any, bool, error) {
	query := s.pool.Reader().Rebind(`
		SELECT * FROM user_skill_installs WHERE user_id = ? AND preset_id = ?`)
	var install UserSkillInstall
	if err := s.pool.Reader().GetContext(ctx, &install, query, userID, presetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, apperr.NotFound("user_skill_install", presetID)
		}
		return nil, false, apperr.Database("get user skill install", err)
	}
	if !install.Enabled {
		return nil, false, nil
	}

	presetRow, err := s.Get(ctx, presetID)
	if err != nil {
		return nil, false, err
	}
	return presetRow.Entries, true, nil
}

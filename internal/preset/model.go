// Package preset implements the MCP and skill catalog entities the
// configuration resolver expands: McpPreset, SkillPreset, UserMcpConfig,
// and UserSkillInstall.
package preset

import "time"

// McpPreset is a catalog template for one MCP server configuration.
type McpPreset struct {
	ID        string         `json:"id" db:"id"`
	Name      string         `json:"name" db:"name"`
	Config    map[string]any `json:"config" db:"-"`
	ConfigRaw string         `json:"-" db:"config"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// SkillPreset is a catalog template bundling file names to content or
// descriptors.
type SkillPreset struct {
	ID         string         `json:"id" db:"id"`
	Name       string         `json:"name" db:"name"`
	Entries    map[string]any `json:"entries" db:"-"`
	EntriesRaw string         `json:"-" db:"entries"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// UserMcpConfig is a per-user override map layered onto an McpPreset's
// template config when the resolver expands mcp_server_ids/mcp_config.
type UserMcpConfig struct {
	UserID       string         `json:"user_id" db:"user_id"`
	PresetID     string         `json:"preset_id" db:"preset_id"`
	Overrides    map[string]any `json:"overrides" db:"-"`
	OverridesRaw string         `json:"-" db:"overrides"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// UserSkillInstall binds a SkillPreset to a user, optionally disabled.
type UserSkillInstall struct {
	UserID      string    `json:"user_id" db:"user_id"`
	PresetID    string    `json:"preset_id" db:"preset_id"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	InstalledAt time.Time `json:"installed_at" db:"installed_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

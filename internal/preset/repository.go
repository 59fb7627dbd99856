package preset

import "context"

// McpRepository is the data-access contract for the MCP preset catalog and
// its per-user overrides.
type McpRepository interface {
	Get(ctx context.Context, id string) (*McpPreset, error)
	List(ctx context.Context) ([]*McpPreset, error)

	GetUserConfig(ctx context.Context, userID, presetID string) (*UserMcpConfig, error)

	// MergedConfig returns the preset's template config with the user's
	// overrides layered on top, the shape the resolver needs for one
	// mcp_server_ids entry.
	MergedConfig(ctx context.Context, userID, presetID string) (map[string]any, error)
}

// SkillRepository is the data-access contract for the skill preset catalog
// and each user's installed skills.
type SkillRepository interface {
	Get(ctx context.Context, id string) (*SkillPreset, error)
	List(ctx context.Context) ([]*SkillPreset, error)

	// ListInstalled returns a user's install records, enabled and disabled.
	ListInstalled(ctx context.Context, userID string) ([]*UserSkillInstall, error)

	// ListEnabledPresetIDs returns the preset ids of a user's enabled skill
	// installs.
	ListEnabledPresetIDs(ctx context.Context, userID string) ([]string, error)

	// Entries returns a skill preset's file-name->content map when the
	// user's install for it is enabled; a disabled install collapses to an
	// empty map and the resolver records {enabled:false} instead.
	Entries(ctx context.Context, userID, presetID string) (entries map[string]any, enabled bool, err error)
}

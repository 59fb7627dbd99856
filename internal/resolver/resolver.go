// Package resolver implements the configuration resolver (spec.md §4.2): a
// pure function of (user_id, run.config_snapshot) plus a side-read of
// per-user env vars, MCP presets, and skill presets, producing an
// effective_config ready for the executor.
package resolver

import (
	"context"

	"github.com/agentforge/controlplane/internal/preset"
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/userenv"
	"github.com/agentforge/controlplane/internal/value"
)

// Resolver composes the preset catalogs and per-user env vars into the
// effective_config the executor receives.
type Resolver struct {
	env   userenv.Repository
	mcp   preset.McpRepository
	skill preset.SkillRepository
}

func New(env userenv.Repository, mcp preset.McpRepository, skill preset.SkillRepository) *Resolver {
	return &Resolver{env: env, mcp: mcp, skill: skill}
}

// Resolve produces effective_config: config_snapshot with mcp_config,
// skill_files, and input_files replaced by their resolved, substituted
// forms. Other top-level fields are preserved verbatim. Resolve is
// deterministic for a fixed env/preset snapshot.
func (r *Resolver) Resolve(ctx context.Context, userID string, snapshot map[string]any) (map[string]any, error) {
	envMap, err := r.env.AsMap(ctx, userID)
	if err != nil {
		return nil, err
	}
	env := value.EnvMap(envMap)

	out := make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		out[k] = v
	}

	mcpConfig, err := r.resolveMcp(ctx, userID, snapshot)
	if err != nil {
		return nil, err
	}
	mcpResolved, err := substituteMap(mcpConfig, env)
	if err != nil {
		return nil, err
	}
	out[run.ConfigKeyMcpConfig] = mcpResolved

	skillFiles, err := r.resolveSkills(ctx, userID, snapshot)
	if err != nil {
		return nil, err
	}
	skillResolved, err := substituteMap(skillFiles, env)
	if err != nil {
		return nil, err
	}
	out[run.ConfigKeySkillFiles] = skillResolved

	inputFiles, _ := snapshot[run.ConfigKeyInputFiles].([]any)
	inputResolved, err := substituteList(inputFiles, env)
	if err != nil {
		return nil, err
	}
	out[run.ConfigKeyInputFiles] = inputResolved

	return out, nil
}

// resolveMcp implements the mcp_server_ids / toggle-map / expanded-config
// priority chain from spec.md §4.2.2.
func (r *Resolver) resolveMcp(ctx context.Context, userID string, snapshot map[string]any) (map[string]any, error) {
	if rawIDs, present := snapshot[run.ConfigKeyMcpServerIDs]; present {
		ids := normalizeIDList(rawIDs)
		return r.mergeMcpPresets(ctx, userID, ids)
	}

	mcpConfig, _ := snapshot[run.ConfigKeyMcpConfig].(map[string]any)
	if mcpConfig == nil {
		return map[string]any{}, nil
	}
	if isToggleMap(mcpConfig) {
		ids := enabledToggleIDs(mcpConfig)
		return r.mergeMcpPresets(ctx, userID, ids)
	}
	return mcpConfig, nil
}

func (r *Resolver) mergeMcpPresets(ctx context.Context, userID string, ids []string) (map[string]any, error) {
	out := make(map[string]any, len(ids))
	for _, id := range ids {
		cfg, err := r.mcp.MergedConfig(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		out[id] = cfg
	}
	return out, nil
}

// resolveSkills implements the skill_ids / skill_files priority chain from
// spec.md §4.2.3. Disabled installs collapse to {enabled:false} and are not
// substituted: the skill_ids path gets this from the install's own enabled
// flag, and the legacy skill_files path gets it from collapseDisabledSkills
// below, applied per top-level skill entry exactly like the id path.
func (r *Resolver) resolveSkills(ctx context.Context, userID string, snapshot map[string]any) (map[string]any, error) {
	rawIDs, present := snapshot[run.ConfigKeySkillIDs]
	if !present {
		files, _ := snapshot[run.ConfigKeySkillFiles].(map[string]any)
		if files == nil {
			return map[string]any{}, nil
		}
		return collapseDisabledSkills(files), nil
	}

	ids := normalizeIDList(rawIDs)
	out := make(map[string]any, len(ids))
	for _, id := range ids {
		entries, enabled, err := r.skill.Entries(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if !enabled {
			out[id] = map[string]any{"enabled": false}
			continue
		}
		out[id] = entries
	}
	return out, nil
}

// collapseDisabledSkills mirrors a name->config skill map's handling of
// per-entry enabled flags: an entry that isn't itself a map is dropped, and
// an entry with enabled=false collapses to {enabled: false} so its content
// never reaches env-var substitution (and can't raise a spurious
// ENV_VAR_NOT_FOUND for a skill the run isn't actually using).
func collapseDisabledSkills(skills map[string]any) map[string]any {
	out := make(map[string]any, len(skills))
	for name, v := range skills {
		cfg, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if enabled, ok := cfg["enabled"].(bool); ok && !enabled {
			out[name] = map[string]any{"enabled": false}
			continue
		}
		out[name] = cfg
	}
	return out
}

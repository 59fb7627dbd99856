package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/preset"
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/userenv"
)

type fakeEnv struct {
	byUser map[string]map[string]string
}

var _ userenv.Repository = (*fakeEnv)(nil)

func (f *fakeEnv) Set(ctx context.Context, userID, name, value string) error { return nil }
func (f *fakeEnv) Get(ctx context.Context, userID, name string) (*userenv.EnvVar, error) {
	return nil, nil
}
func (f *fakeEnv) List(ctx context.Context, userID string) ([]*userenv.EnvVar, error) {
	return nil, nil
}
func (f *fakeEnv) Delete(ctx context.Context, userID, name string) error { return nil }
func (f *fakeEnv) AsMap(ctx context.Context, userID string) (map[string]string, error) {
	return f.byUser[userID], nil
}

type fakeMcp struct {
	presets map[string]map[string]any
}

var _ preset.McpRepository = (*fakeMcp)(nil)

func (f *fakeMcp) Get(ctx context.Context, id string) (*preset.McpPreset, error) { return nil, nil }
func (f *fakeMcp) List(ctx context.Context) ([]*preset.McpPreset, error)         { return nil, nil }
func (f *fakeMcp) GetUserConfig(ctx context.Context, userID, presetID string) (*preset.UserMcpConfig, error) {
	return nil, nil
}
func (f *fakeMcp) MergedConfig(ctx context.Context, userID, presetID string) (map[string]any, error) {
	cfg, ok := f.presets[presetID]
	if !ok {
		return nil, apperr.NotFound("mcp_preset", presetID)
	}
	return cfg, nil
}

type fakeSkill struct {
	installs map[string]bool
	entries  map[string]map[string]any
}

var _ preset.SkillRepository = (*fakeSkill)(nil)

func (f *fakeSkill) Get(ctx context.Context, id string) (*preset.SkillPreset, error) { return nil, nil }
func (f *fakeSkill) List(ctx context.Context) ([]*preset.SkillPreset, error)          { return nil, nil }
func (f *fakeSkill) ListInstalled(ctx context.Context, userID string) ([]*preset.UserSkillInstall, error) {
	return nil, nil
}
func (f *fakeSkill) ListEnabledPresetIDs(ctx context.Context, userID string) ([]string, error) {
	return nil, nil
}
func (f *fakeSkill) Entries(ctx context.Context, userID, presetID string) (map[string]any, bool, error) {
	enabled, ok := f.installs[presetID]
	if !ok {
		return nil, false, apperr.NotFound("user_skill_install", presetID)
	}
	if !enabled {
		return nil, false, nil
	}
	return f.entries[presetID], true, nil
}

func TestResolve_McpServerIDsMergesPresets(t *testing.T) {
	r := New(
		&fakeEnv{byUser: map[string]map[string]string{"user-1": {"HOME": "/home/u1"}}},
		&fakeMcp{presets: map[string]map[string]any{
			"1": {"cmd": "fs-server", "root": "${HOME}"},
		}},
		&fakeSkill{},
	)

	snapshot := map[string]any{
		"mcp_server_ids": []any{"1", "1", " 1 "},
		"repo_url":       "https://github.com/acme/widgets",
	}
	out, err := r.Resolve(context.Background(), "user-1", snapshot)
	require.NoError(t, err)

	mcp, ok := out["mcp_config"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, mcp, 1)
	preset1, ok := mcp["1"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/home/u1", preset1["root"])
	assert.Equal(t, "https://github.com/acme/widgets", out["repo_url"])
	// mcp_server_ids is a top-level field like repo_url: preserved verbatim,
	// not deleted, even though mcp_config now carries its resolved form.
	assert.Equal(t, snapshot["mcp_server_ids"], out["mcp_server_ids"])
}

func TestResolve_ToggleMapFetchesEnabledIDs(t *testing.T) {
	r := New(
		&fakeEnv{byUser: map[string]map[string]string{}},
		&fakeMcp{presets: map[string]map[string]any{
			"1": {"cmd": "a"},
			"3": {"cmd": "c"},
		}},
		&fakeSkill{},
	)

	snapshot := map[string]any{
		"mcp_config": map[string]any{"1": true, "2": false, "3": true},
	}
	out, err := r.Resolve(context.Background(), "user-1", snapshot)
	require.NoError(t, err)

	mcp := out["mcp_config"].(map[string]any)
	assert.Len(t, mcp, 2)
	assert.Contains(t, mcp, "1")
	assert.Contains(t, mcp, "3")
}

func TestResolve_NonBoolToggleValuePassesThroughAsExpanded(t *testing.T) {
	r := New(&fakeEnv{byUser: map[string]map[string]string{}}, &fakeMcp{}, &fakeSkill{})

	snapshot := map[string]any{
		"mcp_config": map[string]any{"svc": map[string]any{"cmd": "x"}},
	}
	out, err := r.Resolve(context.Background(), "user-1", snapshot)
	require.NoError(t, err)

	mcp := out["mcp_config"].(map[string]any)
	svc := mcp["svc"].(map[string]any)
	assert.Equal(t, "x", svc["cmd"])
}

func TestResolve_DisabledSkillCollapses(t *testing.T) {
	r := New(
		&fakeEnv{byUser: map[string]map[string]string{}},
		&fakeMcp{},
		&fakeSkill{
			installs: map[string]bool{"1": false, "2": true},
			entries:  map[string]map[string]any{"2": {"run.sh": "echo hi"}},
		},
	)

	snapshot := map[string]any{
		"skill_ids": []any{"1", "2"},
	}
	out, err := r.Resolve(context.Background(), "user-1", snapshot)
	require.NoError(t, err)

	skills := out["skill_files"].(map[string]any)
	assert.Equal(t, map[string]any{"enabled": false}, skills["1"])
	assert.Equal(t, "echo hi", skills["2"].(map[string]any)["run.sh"])
}

func TestResolve_LegacySkillFilesCollapsesDisabledWithoutSubstitution(t *testing.T) {
	r := New(&fakeEnv{byUser: map[string]map[string]string{}}, &fakeMcp{}, &fakeSkill{})

	snapshot := map[string]any{
		"skill_files": map[string]any{
			"disabled-skill": map[string]any{"enabled": false, "run.sh": "${MISSING}"},
			"active-skill":   map[string]any{"run.sh": "echo hi"},
			"not-a-map":      "ignored",
		},
	}
	out, err := r.Resolve(context.Background(), "user-1", snapshot)
	require.NoError(t, err)

	skills := out["skill_files"].(map[string]any)
	assert.Equal(t, map[string]any{"enabled": false}, skills["disabled-skill"])
	assert.Equal(t, "echo hi", skills["active-skill"].(map[string]any)["run.sh"])
	_, hasNonMap := skills["not-a-map"]
	assert.False(t, hasNonMap)
}

func TestResolve_MissingEnvVarFails(t *testing.T) {
	r := New(
		&fakeEnv{byUser: map[string]map[string]string{}},
		&fakeMcp{presets: map[string]map[string]any{"1": {"token": "${API_KEY}"}}},
		&fakeSkill{},
	)

	snapshot := map[string]any{"mcp_server_ids": []any{"1"}}
	_, err := r.Resolve(context.Background(), "user-1", snapshot)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeEnvVarNotFound))
}

func TestResolve_IsDeterministic(t *testing.T) {
	r := New(
		&fakeEnv{byUser: map[string]map[string]string{"user-1": {"HOME": "/x"}}},
		&fakeMcp{presets: map[string]map[string]any{"1": {"root": "${HOME}"}}},
		&fakeSkill{},
	)
	snapshot := map[string]any{"mcp_server_ids": []any{"1"}}

	first, err := r.Resolve(context.Background(), "user-1", snapshot)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "user-1", snapshot)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

var _ = run.ConfigKeyMcpConfig

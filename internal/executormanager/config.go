package executormanager

import (
	"github.com/agentforge/controlplane/internal/run"
	"github.com/agentforge/controlplane/internal/stager"
)

// stagerEntries reads effective["input_files"] back out as stager.Entry
// values. Resolve returns input_files as []any of map[string]any (each
// element round-tripped through value.Substitute), so this is a plain
// shape conversion, not a second resolution pass.
func stagerEntries(effective map[string]any) []stager.Entry {
	raw, _ := effective[run.ConfigKeyInputFiles].([]any)
	entries := make([]stager.Entry, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entries = append(entries, stager.Entry{
			Type:       stringField(m, "type"),
			Name:       stringField(m, "name"),
			Source:     stringField(m, "source"),
			URL:        stringField(m, "url"),
			Branch:     stringField(m, "branch"),
			TargetPath: stringField(m, "target_path"),
		})
	}
	return entries
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func toStagedInputs(staged []stager.Staged) []StagedInput {
	out := make([]StagedInput, 0, len(staged))
	for _, s := range staged {
		out = append(out, StagedInput{
			Type:   s.Type,
			Name:   s.Name,
			Source: s.Source,
			URL:    s.URL,
			Branch: s.Branch,
			Path:   s.Path,
		})
	}
	return out
}

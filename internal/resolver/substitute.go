package resolver

import "github.com/agentforge/controlplane/internal/value"

// substituteMap runs env substitution over a resolved config tree and
// returns it back in map[string]any form for JSON re-marshaling.
func substituteMap(m map[string]any, env value.EnvMap) (map[string]any, error) {
	resolved, err := value.Substitute(value.FromAny(m), env)
	if err != nil {
		return nil, err
	}
	out, _ := resolved.ToAny().(map[string]any)
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// substituteList runs env substitution over a resolved list, such as
// input_files, and returns it back in []any form.
func substituteList(list []any, env value.EnvMap) ([]any, error) {
	resolved, err := value.Substitute(value.FromAny(list), env)
	if err != nil {
		return nil, err
	}
	out, _ := resolved.ToAny().([]any)
	if out == nil {
		out = []any{}
	}
	return out, nil
}

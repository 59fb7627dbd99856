package value

import (
	"strings"

	"github.com/agentforge/controlplane/internal/apperr"
)

// EnvMap is the user's collected environment variables, consulted during
// substitution.
type EnvMap map[string]string

// Substitute walks v recursively, replacing every `${TOKEN}` occurrence in
// string leaves per the grammar:
//
//	${env:NAME}        - lookup NAME, ENV_VAR_NOT_FOUND if absent
//	${NAME:-DEFAULT}    - lookup NAME, fall back to literal DEFAULT
//	${NAME}            - lookup NAME, ENV_VAR_NOT_FOUND if absent
//
// Lists and maps are walked element-wise; non-string scalars pass through
// unchanged. Substitution is splice-based so surrounding characters in a
// string are preserved, and a string may contain multiple tokens.
func Substitute(v Value, env EnvMap) (Value, error) {
	switch v.Kind {
	case KindString:
		resolved, err := substituteString(v.Str, env)
		if err != nil {
			return Value{}, err
		}
		return String(resolved), nil
	case KindList:
		out := make([]Value, len(v.List))
		for i, item := range v.List {
			resolved, err := Substitute(item, env)
			if err != nil {
				return Value{}, err
			}
			out[i] = resolved
		}
		return List(out), nil
	case KindMap:
		out := make(map[string]Value, len(v.Map))
		for k, item := range v.Map {
			resolved, err := Substitute(item, env)
			if err != nil {
				return Value{}, err
			}
			out[k] = resolved
		}
		return Map(out), nil
	default:
		return v, nil
	}
}

// substituteString replaces every ${...} token in s, left to right.
func substituteString(s string, env EnvMap) (string, error) {
	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start

		b.WriteString(rest[:start])
		token := rest[start+2 : end]
		resolved, err := resolveToken(token, env)
		if err != nil {
			return "", err
		}
		b.WriteString(resolved)
		rest = rest[end+1:]
	}
	return b.String(), nil
}

// resolveToken resolves a single token body (the text between ${ and }).
func resolveToken(token string, env EnvMap) (string, error) {
	if name, ok := strings.CutPrefix(token, "env:"); ok {
		val, found := env[name]
		if !found {
			return "", apperr.EnvVarNotFound(name)
		}
		return val, nil
	}

	if idx := strings.Index(token, ":-"); idx >= 0 {
		name := token[:idx]
		fallback := token[idx+2:]
		if val, found := env[name]; found {
			return val, nil
		}
		return fallback, nil
	}

	val, found := env[token]
	if !found {
		return "", apperr.EnvVarNotFound(token)
	}
	return val, nil
}

package resolver

import (
	"strconv"
	"strings"
)

// normalizeIDList accepts a list element that is an int or a decimal
// string, strips whitespace, drops empty/duplicate/non-numeric entries, and
// preserves first-seen order.
func normalizeIDList(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		id, ok := normalizeID(item)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func normalizeID(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return "", false
		}
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			return "", false
		}
		return s, true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		if t != float64(int64(t)) {
			return "", false
		}
		return strconv.FormatInt(int64(t), 10), true
	default:
		return "", false
	}
}

// isToggleMap reports whether every value in m is a bool and every key is a
// decimal id, per the detection rule in the toggle-map resolution path.
func isToggleMap(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for k, v := range m {
		if _, ok := v.(bool); !ok {
			return false
		}
		if _, ok := normalizeID(strings.TrimSpace(k)); !ok {
			return false
		}
	}
	return true
}

func enabledToggleIDs(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if b, _ := v.(bool); b {
			id, _ := normalizeID(k)
			out = append(out, id)
		}
	}
	return out
}

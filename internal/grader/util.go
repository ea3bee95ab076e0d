package grader

import (
	"fmt"
	"regexp"
	"strings"
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func compilePatterns(label string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("grader: %s: patterns[%d] %q: %w", label, i, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func trimmedNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// contextStrings pulls a list of strings out of a loosely-typed task
// context value ([]string, []any of strings, or a single string).
func contextStrings(v any) []string {
	switch vv := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(vv) == "" {
			return nil
		}
		return []string{vv}
	case []string:
		return trimmedNonEmpty(vv)
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	default:
		return nil
	}
}

func asIntValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float32:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asBoolValue(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes":
			return true, true
		case "false", "no":
			return false, true
		}
	}
	return false, false
}

// fieldVariants returns the spellings under which a configured field name is
// accepted in a result row: as-is, lowercased, snake_case, and camelCase.
func fieldVariants(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	seen := map[string]struct{}{}
	variants := []string{}
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		variants = append(variants, s)
	}

	add(name)
	add(strings.ToLower(name))
	add(toSnake(name))
	add(toCamel(name))
	return variants
}

func toSnake(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func toCamel(s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 1 {
		return s
	}
	var sb strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 {
			sb.WriteString(p)
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]))
		sb.WriteString(p[1:])
	}
	return sb.String()
}

// lookupField finds a value in a row under any accepted spelling of name.
func lookupField(row map[string]any, name string) (any, bool) {
	for _, variant := range fieldVariants(name) {
		if v, ok := row[variant]; ok {
			return v, true
		}
	}
	// Last resort: case-insensitive scan.
	lower := strings.ToLower(strings.TrimSpace(name))
	for k, v := range row {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return nil, false
}

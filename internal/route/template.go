package route

import (
	"fmt"
	"strings"
)

// Expand substitutes {{key}} placeholders in a nested template structure
// (strings, maps, slices) with values from ctx. Non-string leaves and
// placeholders absent from ctx are left untouched. The input is never
// mutated; maps and slices are rebuilt.
func Expand(template any, ctx map[string]any) any {
	switch t := template.(type) {
	case string:
		return expandString(t, ctx)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = Expand(v, ctx)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = Expand(v, ctx)
		}
		return out
	default:
		return template
	}
}

func expandString(s string, ctx map[string]any) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	for k, v := range ctx {
		if v == nil {
			continue
		}
		s = strings.ReplaceAll(s, "{{"+k+"}}", fmt.Sprintf("%v", v))
	}
	return s
}

// References reports whether any of the given placeholder keys appear in the
// template. Used to decide whether a route is date-driven.
func References(template any, keys ...string) bool {
	switch t := template.(type) {
	case string:
		for _, k := range keys {
			if strings.Contains(t, "{{"+k+"}}") {
				return true
			}
		}
	case map[string]any:
		for _, v := range t {
			if References(v, keys...) {
				return true
			}
		}
	case []any:
		for _, v := range t {
			if References(v, keys...) {
				return true
			}
		}
	}
	return false
}

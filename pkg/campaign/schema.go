// Package campaign holds the campaign document schema, the deterministic
// builder used as a backstop, and the reconciler that merges the two.
package campaign

import (
	"fmt"
	"strings"

	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// SectionValid reports whether v is an acceptable value for the top-level key.
// generated_assets must additionally carry every asset collection as a list.
func SectionValid(key string, v any) bool {
	kind, known := types.KeyKinds[key]
	if !known {
		return false
	}

	switch kind {
	case types.ListKind:
		_, ok := v.([]any)
		return ok
	case types.ObjectKind:
		obj, ok := v.(map[string]any)
		if !ok {
			return false
		}
		if key == types.KeyGeneratedAssets {
			for _, c := range types.AssetCollections {
				if _, ok := obj[c].([]any); !ok {
					return false
				}
			}
		}
		return true
	}
	return false
}

// InvalidKeys returns the required keys that are absent or carry the wrong
// container type, in schema order.
func InvalidKeys(r map[string]any) []string {
	var bad []string
	for _, k := range types.ResultKeys {
		if !SectionValid(k, r[k]) {
			bad = append(bad, k)
		}
	}
	return bad
}

// Valid is the acceptance gate applied to every tier's output.
func Valid(r map[string]any) bool {
	return r != nil && len(InvalidKeys(r)) == 0
}

// Validate is Valid with a descriptive error.
func Validate(r map[string]any) error {
	if r == nil {
		return fmt.Errorf("campaign is empty")
	}
	if bad := InvalidKeys(r); len(bad) > 0 {
		return fmt.Errorf("campaign has missing or malformed sections: %s", strings.Join(bad, ", "))
	}
	return nil
}

// Layout describes the required shape, for prompts and the schema tool.
func Layout() map[string]string {
	out := make(map[string]string, len(types.ResultKeys))
	for _, k := range types.ResultKeys {
		switch {
		case k == types.KeyGeneratedAssets:
			out[k] = "object with lists: " + strings.Join(types.AssetCollections, ", ")
		case types.KeyKinds[k] == types.ListKind:
			out[k] = "list"
		default:
			out[k] = "object"
		}
	}
	return out
}

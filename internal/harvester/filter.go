package harvester

import "strings"

// Keys removed from detail payloads at any depth. Source-language
// duplicates carry a "C" suffix and are covered by the suffix rule.
var excludedDetailKeys = map[string]struct{}{
	"video":             {},
	"description":       {},
	"fromPlatform_logo": {},
	"picUrl":            {},
	"titleT":            {},
}

// Subtrees copied through the first pass untouched. Specification
// entries mix C-suffixed and translated keys and must survive as a
// unit; the cleanup pass strips the excluded keys afterwards.
var preservedDetailKeys = map[string]struct{}{
	"specification":  {},
	"specifications": {},
}

// FilterDetailJSON reduces a raw detail payload to the fields the
// materializer consumes. It removes keys ending in "C" and the excluded
// set everywhere, keeps specification subtrees intact, and collapses
// maps left empty by the filtering. A second pass re-removes excluded
// keys that a preserved subtree carried back in.
func FilterDetailJSON(tree map[string]any) map[string]any {
	filtered, ok := filterNode(tree)
	if !ok {
		return nil
	}
	cleaned, _ := stripExcluded(filtered).(map[string]any)
	return cleaned
}

func filterNode(value any) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			if _, preserved := preservedDetailKeys[key]; preserved {
				out[key] = child
				continue
			}
			if isExcludedKey(key) {
				continue
			}
			if fc, ok := filterNode(child); ok {
				out[key] = fc
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	case []any:
		out := make([]any, 0, len(v))
		for _, child := range v {
			if fc, ok := filterNode(child); ok {
				out = append(out, fc)
			}
		}
		return out, true
	default:
		return v, true
	}
}

// stripExcluded removes excluded keys from an already-filtered tree
// without collapsing anything.
func stripExcluded(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			if isExcludedKey(key) {
				continue
			}
			out[key] = stripExcluded(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = stripExcluded(child)
		}
		return out
	default:
		return v
	}
}

func isExcludedKey(key string) bool {
	if strings.HasSuffix(key, "C") {
		return true
	}
	_, excluded := excludedDetailKeys[key]
	return excluded
}

package resolve

import "strings"

// Marker is the two-character prefix that designates a string value as
// deferred expression code.
const Marker = "<("

// IsCode reports whether v is a string carrying the code marker.
func IsCode(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, Marker)
}

// ContainsCode reports whether v holds code anywhere: a marked string, a
// mapping with a code-bearing value, or a sequence with a code-bearing
// element. Every other value is plain data.
func ContainsCode(v any) bool {
	switch x := v.(type) {
	case map[string]any:
		for _, item := range x {
			if ContainsCode(item) {
				return true
			}
		}
		return false
	case []any:
		for _, item := range x {
			if ContainsCode(item) {
				return true
			}
		}
		return false
	default:
		return IsCode(v)
	}
}

package worker

import (
	"strings"
	"unicode"
)

// Control keys recognized at the top level of an activity event. They steer
// the worker and are stripped before schema validation.
const (
	KeyLogInput        = "LOG_INPUT"
	KeyLogContext      = "LOG_CONTEXT"
	KeyReturnSchema    = "RETURN_SCHEMA"
	KeyDisableProtocol = "DISABLE_PROTOCOL"
	KeyDebugMode       = "DEBUG_MODE"
)

var controlKeys = []string{
	KeyLogInput,
	KeyLogContext,
	KeyReturnSchema,
	KeyDisableProtocol,
	KeyDebugMode,
}

// Params is a read-only view of the raw activity event. String values are
// trimmed on access; everything else passes through untouched.
type Params struct {
	event map[string]any
}

// NewParams wraps a decoded event.
func NewParams(event map[string]any) *Params {
	return &Params{event: event}
}

// Get returns the raw value for name, trimming string values.
func (p *Params) Get(name string) any {
	v, ok := p.event[name]
	if !ok {
		return nil
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s)
	}
	return v
}

// Has reports whether name is present in the event.
func (p *Params) Has(name string) bool {
	_, ok := p.event[name]
	return ok
}

// Raw returns the underlying event mapping.
func (p *Params) Raw() map[string]any { return p.event }

// snakeCase normalizes a declared parameter name into a handler argument
// name: camelCase humps and spaces become underscores, the result is lower
// case. "maxRetries" and "max Retries" both map to "max_retries".
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i, r := range runes {
		if r == ' ' {
			b.WriteRune('_')
			continue
		}
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			boundary := unicode.IsLower(prev) || unicode.IsDigit(prev) || nextLower
			if boundary && prev != '_' && prev != ' ' {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// stripControlKeys returns the event without its control keys.
func stripControlKeys(event map[string]any) map[string]any {
	out := make(map[string]any, len(event))
	for k, v := range event {
		out[k] = v
	}
	for _, key := range controlKeys {
		delete(out, key)
	}
	return out
}

// truthy mirrors loose control-key checks: present and not false/empty.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != "" && !strings.EqualFold(x, "false")
	case float64:
		return x != 0
	default:
		return true
	}
}

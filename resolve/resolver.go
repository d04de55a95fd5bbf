// Package resolve defers evaluation of values that embed code. A value
// contains code when a string in it starts with the "<(" marker; such values
// are wrapped in a Resolver and executed on demand inside a sandboxed
// ECMAScript runtime with a wall-clock budget. Containers key resolvers by
// parameter name and expose lazy-get semantics over them.
package resolve

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/workfleet/fulfill/timeline"
)

type (
	// Resolver wraps one input value that may require code evaluation. It is
	// constructed unevaluated; the first Evaluate transitions it to a
	// terminal state: either resolved with a result, or unresolvable with an
	// error note on its timeline.
	Resolver struct {
		input    any
		timeout  time.Duration
		clock    func() time.Time
		timeline *timeline.Timeline

		needsEvaluation bool
		evaluated       bool
		resolved        bool
		resolvable      bool
		result          any
		code            string
	}

	// Option customizes a Resolver at construction.
	Option func(*Resolver)
)

// WithTimeout overrides the evaluation wall-clock budget.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithClock stamps timeline entries with the given clock.
func WithClock(clock func() time.Time) Option {
	return func(r *Resolver) { r.clock = clock }
}

// New builds a resolver around input. Inputs without code are immediately
// evaluated and resolved to themselves.
func New(input any, opts ...Option) *Resolver {
	r := &Resolver{
		input:      input,
		timeout:    DefaultTimeout,
		resolvable: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	var tlOpts []timeline.Option
	if r.clock != nil {
		tlOpts = append(tlOpts, timeline.WithClock(r.clock))
	}
	r.timeline = timeline.New(tlOpts...)

	r.needsEvaluation = ContainsCode(input)
	if !r.needsEvaluation {
		r.evaluated = true
		r.resolved = true
		r.result = input
	}
	return r
}

// Evaluate runs the embedded code once. Subsequent calls are no-ops; the
// resolver keeps its first outcome.
func (r *Resolver) Evaluate() {
	if r.evaluated {
		return
	}
	r.evaluated = true

	result, err := r.eval(r.input)
	if err != nil {
		r.timeline.ErrorEvent(err.Error())
		r.resolvable = false
		return
	}
	r.result = result
	r.resolved = true
}

func (r *Resolver) eval(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if strings.HasPrefix(k, Marker) {
				return nil, fmt.Errorf("Error in script: KeyError(line 0) mapping key must not be code: '%s'", k)
			}
			ev, err := r.eval(x[k])
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	case []any:
		if len(x) > 0 {
			if first, ok := x[0].(string); ok && first == Marker {
				return r.evalString(joinLines(x))
			}
		}
		out := make([]any, len(x))
		for i, item := range x {
			ev, err := r.eval(item)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case string:
		if strings.HasPrefix(x, Marker) {
			return r.evalString(x)
		}
		return x, nil
	default:
		return v, nil
	}
}

// joinLines folds a sequence whose first element is the bare marker into a
// single multi-line code block.
func joinLines(elems []any) string {
	lines := make([]string, len(elems))
	for i, e := range elems {
		lines[i] = fmt.Sprint(e)
	}
	return strings.Join(lines, "\n")
}

func (r *Resolver) evalString(s string) (any, error) {
	body := strings.TrimPrefix(s, Marker)
	result, src, err := sandbox{timeout: r.timeout}.run(body)
	r.code = src
	return result, err
}

// Input returns the raw input the resolver was built from.
func (r *Resolver) Input() any { return r.input }

// Result returns the evaluation result, or nil while unresolved.
func (r *Resolver) Result() any {
	if !r.IsResolved() {
		return nil
	}
	return r.result
}

// NeedsEvaluation reports whether the input contained code.
func (r *Resolver) NeedsEvaluation() bool { return r.needsEvaluation }

// IsEvaluated reports whether Evaluate has run (or the input was plain).
func (r *Resolver) IsEvaluated() bool { return r.evaluated }

// IsResolvable reports whether evaluation has not failed.
func (r *Resolver) IsResolvable() bool { return r.resolvable }

// IsResolved reports whether the resolver holds a usable result.
func (r *Resolver) IsResolved() bool { return r.resolvable && r.resolved }

// Code returns the wrapped source of the last compiled code block.
func (r *Resolver) Code() string { return r.code }

// Timeline returns the resolver's event log.
func (r *Resolver) Timeline() *timeline.Timeline { return r.timeline }

// ToJSON projects the resolver's full state for detailed introspection.
func (r *Resolver) ToJSON() map[string]any {
	return map[string]any{
		"input":           r.input,
		"result":          r.result,
		"resolvable":      r.resolvable,
		"resolved":        r.resolved,
		"evaluated":       r.evaluated,
		"needsEvaluation": r.needsEvaluation,
		"timeline":        r.timeline.ToJSON(),
		"code":            r.code,
	}
}

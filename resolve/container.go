package resolve

import "github.com/workfleet/fulfill/timeline"

// Transform post-processes a value after it resolves, typically a schema
// parse so code-produced values get the same normalization as plain input.
type Transform func(any) (any, error)

type (
	// Wrapper holds either a concrete value or a pending resolver. The first
	// successful Get evaluates and transforms; later calls return the cached
	// value.
	Wrapper struct {
		resolver  *Resolver
		transform Transform
		value     any
		resolved  bool
		err       error
	}

	// Container is an ordered mapping from parameter name to Wrapper with a
	// breadcrumb context and its own timeline. Lookup failures are recorded
	// on the timeline instead of propagating.
	Container struct {
		context      string
		names        []string
		items        map[string]*Wrapper
		timeline     *timeline.Timeline
		resolverOpts []Option
	}

	// AddConfig carries per-Add settings.
	AddConfig struct {
		skipResolver bool
	}

	// AddOption customizes a single Add call.
	AddOption func(*AddConfig)
)

// SkipResolver stores the value directly even when it contains code. Used
// for nested resolver-object parameters so their containers are not wrapped
// a second time.
func SkipResolver() AddOption {
	return func(c *AddConfig) { c.skipResolver = true }
}

// NewWrapper builds a wrapper around a concrete value, applying the
// transform eagerly.
func NewWrapper(value any, transform Transform) *Wrapper {
	w := &Wrapper{value: value, resolved: true}
	if transform != nil {
		v, err := transform(value)
		if err != nil {
			w.err = err
			return w
		}
		w.value = v
	}
	return w
}

// WrapResolver builds a wrapper around a pending resolver. The transform is
// applied after the first successful evaluation.
func WrapResolver(r *Resolver, transform Transform) *Wrapper {
	return &Wrapper{resolver: r, transform: transform}
}

// Resolver returns the wrapped resolver, or nil for concrete values.
func (w *Wrapper) Resolver() *Resolver { return w.resolver }

// Get returns the wrapped value, evaluating the resolver on first use.
// context names the value in error messages.
func (w *Wrapper) Get(context string) (any, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.resolved {
		return w.value, nil
	}

	w.resolver.Evaluate()
	if !w.resolver.IsResolvable() {
		return nil, &unresolvableError{context: context}
	}
	if !w.resolver.IsResolved() {
		return nil, &unresolvedError{context: context}
	}
	v := w.resolver.Result()
	if w.transform != nil {
		tv, err := w.transform(v)
		if err != nil {
			w.err = err
			return nil, err
		}
		v = tv
	}
	w.value = v
	w.resolved = true
	return w.value, nil
}

type unresolvableError struct{ context string }

func (e *unresolvableError) Error() string { return e.context + " is not resolvable!" }

type unresolvedError struct{ context string }

func (e *unresolvedError) Error() string { return e.context + " is NOT resolved yet!" }

// NewContainer builds an empty container. context is the breadcrumb prefix
// used in lookup errors; resolverOpts apply to every resolver the container
// creates.
func NewContainer(context string, resolverOpts ...Option) *Container {
	return &Container{
		context:      context,
		items:        make(map[string]*Wrapper),
		timeline:     timeline.New(),
		resolverOpts: resolverOpts,
	}
}

// Add registers a value under name. Values containing code are wrapped in a
// resolver unless SkipResolver is given; either way the transform applies to
// the final value.
func (c *Container) Add(name string, value any, transform Transform, opts ...AddOption) {
	var cfg AddConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	var w *Wrapper
	if !cfg.skipResolver && ContainsCode(value) {
		w = WrapResolver(New(value, c.resolverOpts...), transform)
	} else {
		w = NewWrapper(value, transform)
	}
	if _, exists := c.items[name]; !exists {
		c.names = append(c.names, name)
	}
	c.items[name] = w
}

// Has reports whether name resolves to a non-nil value.
func (c *Container) Has(name string) bool {
	return c.Get(name) != nil
}

// Get returns the resolved value for name, or nil when the name is unknown
// or resolution fails. Failures are recorded on the container timeline.
func (c *Container) Get(name string) any {
	w, ok := c.items[name]
	if !ok {
		return nil
	}
	v, err := w.Get(c.context + "/" + name)
	if err != nil {
		c.timeline.ErrorEvent(err.Error())
		return nil
	}
	return v
}

// Evaluate forces evaluation of every contained resolver, collecting errors
// into the container timeline.
func (c *Container) Evaluate() {
	for _, name := range c.names {
		w := c.items[name]
		if w.Resolver() == nil {
			continue
		}
		if _, err := w.Get(c.context + "/" + name); err != nil {
			c.timeline.ErrorEvent(err.Error())
		}
	}
}

// Names returns the registered names in insertion order.
func (c *Container) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Context returns the container's breadcrumb prefix.
func (c *Container) Context() string { return c.context }

// Timeline returns the container's event log.
func (c *Container) Timeline() *timeline.Timeline { return c.timeline }

// ToJSON projects the container. Shallow mode maps each name to its
// resolved value; detailed mode exposes resolver internals for entries
// backed by one.
func (c *Container) ToJSON(detailed bool) map[string]any {
	out := make(map[string]any, len(c.names))
	for _, name := range c.names {
		w := c.items[name]
		if detailed && w.Resolver() != nil {
			out[name] = w.Resolver().ToJSON()
			continue
		}
		out[name] = c.Get(name)
	}
	return out
}

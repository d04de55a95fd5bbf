package schema

import (
	"fmt"
	"sort"

	"github.com/workfleet/fulfill/resolve"
)

// parseResolverObject parses an object into a lazy resolve.Container instead
// of a plain map. Declared properties are registered with their parse as the
// transform, so a value produced by deferred code is normalized exactly like
// plain input. Nested resolver objects register with SkipResolver so their
// containers are not wrapped a second time.
func (p *Parameter) parseResolverObject(value any, context string) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%v is not an object", value)
	}

	container := resolve.NewContainer(context, p.resolverOpts...)
	for _, name := range p.propertyNames() {
		prop := p.properties[name]
		propContext := fmt.Sprintf("%s[%s]", context, name)
		transform := func(v any) (any, error) { return prop.Parse(v, propContext) }

		var opts []resolve.AddOption
		if prop.kind == KindResolverObject {
			opts = append(opts, resolve.SkipResolver())
		}
		container.Add(name, m[name], transform, opts...)
	}

	if p.extraType != nil {
		extras := make([]string, 0, len(m))
		for key := range m {
			if _, declared := p.properties[key]; !declared {
				extras = append(extras, key)
			}
		}
		sort.Strings(extras)
		for _, key := range extras {
			keyContext := fmt.Sprintf("%s[%s]", context, key)
			extraType := p.extraType
			container.Add(key, m[key], func(v any) (any, error) {
				return extraType.Parse(v, keyContext)
			})
		}
	}
	return container, nil
}

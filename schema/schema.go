// Package schema provides declarative parameter and result descriptors for
// activity events. A descriptor is a node in a typed tree; every node emits
// its JSON-Schema Draft-4 fragment, validates raw input against it, and
// parses raw JSON into normalized values. The resolver-object variant parses
// into a lazy container whose values may embed deferred code.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/workfleet/fulfill/resolve"
)

// Draft4URL is the schema version stamped on top-level documents.
const Draft4URL = "http://json-schema.org/draft-04/schema#"

// Kind tags a descriptor with its concrete behavior; ToSchema and Parse
// dispatch on it.
type Kind int

const (
	KindString Kind = iota
	KindEnum
	KindBoolean
	KindUri
	KindUuid
	KindInt
	KindFloat
	KindIsoDate
	KindNaiveIsoDate
	KindLocalIsoDateTime
	KindObject
	KindResolverObject
	KindLooseObject
	KindStringMap
	KindArray
	KindOneOf
	KindAnyOf
	KindJson
)

const (
	uuidPattern             = "^[0-9A-Fa-f]{8}-([0-9A-Fa-f]{4}-){3}[0-9A-Fa-f]{12}$"
	isoDatePattern          = `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`
	naiveIsoDatePattern     = `^\d{4}-\d{2}-\d{2}$`
	localIsoDateTimePattern = `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?$`
)

// descriptionLimit bounds the description excerpt quoted in missing-required
// errors.
const descriptionLimit = 40

type (
	// Parameter is one schema descriptor node. Build instances with the
	// typed constructors; the zero value is not usable.
	Parameter struct {
		kind        Kind
		description string
		required    bool
		def         any
		extra       map[string]any

		// string constraints
		pattern   string
		minLength int
		maxLength int

		// numeric constraints
		minimum    *float64
		maximum    *float64
		enum       []string
		properties map[string]*Parameter
		element    *Parameter
		valueType  *Parameter
		options    []*Parameter
		keyRegex   string

		// resolver-object settings
		extraType    *Parameter
		resolverOpts []resolve.Option
	}

	// Option customizes a descriptor at construction.
	Option func(*Parameter)
)

// Optional marks the parameter as not required.
func Optional() Option {
	return func(p *Parameter) { p.required = false }
}

// WithDefault attaches a default, which implies the parameter is optional.
func WithDefault(v any) Option {
	return func(p *Parameter) {
		p.def = v
		p.required = false
	}
}

// Require re-asserts that the parameter is required. Combining it with a
// default is a construction error.
func Require() Option {
	return func(p *Parameter) { p.required = true }
}

// WithSchema merges extra keywords into the emitted schema fragment.
func WithSchema(extra map[string]any) Option {
	return func(p *Parameter) {
		if p.extra == nil {
			p.extra = make(map[string]any, len(extra))
		}
		for k, v := range extra {
			p.extra[k] = v
		}
	}
}

// WithPattern constrains string values to the regular expression.
func WithPattern(pattern string) Option {
	return func(p *Parameter) { p.pattern = pattern }
}

// WithMinLength constrains the minimum string length.
func WithMinLength(n int) Option {
	return func(p *Parameter) { p.minLength = n }
}

// WithMaxLength constrains the maximum string length.
func WithMaxLength(n int) Option {
	return func(p *Parameter) { p.maxLength = n }
}

// WithMinimum constrains the minimum numeric value.
func WithMinimum(v float64) Option {
	return func(p *Parameter) { p.minimum = &v }
}

// WithMaximum constrains the maximum numeric value.
func WithMaximum(v float64) Option {
	return func(p *Parameter) { p.maximum = &v }
}

// WithMinItems constrains the minimum array length.
func WithMinItems(n int) Option {
	return func(p *Parameter) { p.minLength = n }
}

// WithMaxItems constrains the maximum array length.
func WithMaxItems(n int) Option {
	return func(p *Parameter) { p.maxLength = n }
}

// Unique requires array elements to be distinct.
func Unique() Option {
	return func(p *Parameter) { p.extra = merged(p.extra, "uniqueItems", true) }
}

// WithKeyPattern sets the key regular expression of a loose object.
func WithKeyPattern(regex string) Option {
	return func(p *Parameter) { p.keyRegex = regex }
}

// WithExtraType lets a resolver object accept undeclared keys, parsed with
// the given descriptor.
func WithExtraType(t *Parameter) Option {
	return func(p *Parameter) { p.extraType = t }
}

// WithResolverOptions applies resolver options (timeout, clock) to every
// resolver a resolver object creates.
func WithResolverOptions(opts ...resolve.Option) Option {
	return func(p *Parameter) { p.resolverOpts = opts }
}

func newParameter(kind Kind, description string, opts ...Option) *Parameter {
	p := &Parameter{
		kind:        kind,
		description: description,
		required:    true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.required && p.def != nil {
		panic("schema: required parameters can't have default values")
	}
	return p
}

// String declares a string parameter.
func String(description string, opts ...Option) *Parameter {
	return newParameter(KindString, description, opts...)
}

// Enum declares a string parameter restricted to the given options.
func Enum(description string, options []string, opts ...Option) *Parameter {
	p := newParameter(KindEnum, description, opts...)
	p.enum = options
	return p
}

// Boolean declares a boolean parameter.
func Boolean(description string, opts ...Option) *Parameter {
	return newParameter(KindBoolean, description, opts...)
}

// Uri declares a URI-formatted string parameter.
func Uri(description string, opts ...Option) *Parameter {
	return newParameter(KindUri, description, opts...)
}

// Uuid declares a UUID string parameter.
func Uuid(description string, opts ...Option) *Parameter {
	return newParameter(KindUuid, description, opts...)
}

// Int declares an integer parameter.
func Int(description string, opts ...Option) *Parameter {
	return newParameter(KindInt, description, opts...)
}

// Float declares a floating point parameter.
func Float(description string, opts ...Option) *Parameter {
	return newParameter(KindFloat, description, opts...)
}

// IsoDate declares an ISO-8601 timestamp parameter with zone offset.
func IsoDate(description string, opts ...Option) *Parameter {
	return newParameter(KindIsoDate, description, opts...)
}

// NaiveIsoDate declares a date-only ISO-8601 parameter.
func NaiveIsoDate(description string, opts ...Option) *Parameter {
	return newParameter(KindNaiveIsoDate, description, opts...)
}

// LocalIsoDateTime declares a zone-less ISO-8601 timestamp parameter.
func LocalIsoDateTime(description string, opts ...Option) *Parameter {
	return newParameter(KindLocalIsoDateTime, description, opts...)
}

// Object declares an object parameter with the given named properties.
func Object(description string, properties map[string]*Parameter, opts ...Option) *Parameter {
	p := newParameter(KindObject, description, opts...)
	p.properties = properties
	return p
}

// ResolverObject declares an object parameter that parses into a lazy
// resolver container instead of a plain mapping.
func ResolverObject(description string, properties map[string]*Parameter, opts ...Option) *Parameter {
	p := newParameter(KindResolverObject, description, opts...)
	p.properties = properties
	return p
}

// LooseObject declares an object with arbitrary keys whose values all parse
// with valueType.
func LooseObject(description string, valueType *Parameter, opts ...Option) *Parameter {
	p := newParameter(KindLooseObject, description, opts...)
	p.valueType = valueType
	if p.keyRegex == "" {
		p.keyRegex = ".+"
	}
	return p
}

// StringMap declares an object whose values are all strings.
func StringMap(description string, opts ...Option) *Parameter {
	return newParameter(KindStringMap, description, opts...)
}

// Array declares an array parameter with a fixed element descriptor.
func Array(description string, element *Parameter, opts ...Option) *Parameter {
	p := newParameter(KindArray, description, opts...)
	p.element = element
	return p
}

// OneOf declares a union parameter matched against exactly one option.
func OneOf(description string, options []*Parameter, opts ...Option) *Parameter {
	p := newParameter(KindOneOf, description, opts...)
	p.options = options
	return p
}

// AnyOf declares a union parameter matched against at least one option.
func AnyOf(description string, options []*Parameter, opts ...Option) *Parameter {
	p := newParameter(KindAnyOf, description, opts...)
	p.options = options
	return p
}

// Json declares a parameter accepting any JSON value.
func Json(description string, opts ...Option) *Parameter {
	return newParameter(KindJson, description, opts...)
}

// Kind returns the descriptor's variant tag.
func (p *Parameter) Kind() Kind { return p.kind }

// Description returns the human description.
func (p *Parameter) Description() string { return p.description }

// IsRequired reports whether the parameter must be present.
func (p *Parameter) IsRequired() bool { return p.required }

// Default returns the declared default, or nil.
func (p *Parameter) Default() any { return p.def }

// Simple reports whether the descriptor is a non-container type.
func (p *Parameter) Simple() bool {
	switch p.kind {
	case KindObject, KindResolverObject, KindLooseObject, KindStringMap, KindArray:
		return false
	}
	return true
}

func (p *Parameter) jsonType() any {
	switch p.kind {
	case KindBoolean:
		return "boolean"
	case KindInt:
		return "integer"
	case KindFloat:
		return "number"
	case KindObject, KindResolverObject, KindLooseObject, KindStringMap:
		return "object"
	case KindArray:
		return "array"
	case KindOneOf, KindAnyOf:
		types := make([]string, len(p.options))
		for i, o := range p.options {
			types[i] = fmt.Sprint(o.jsonType())
		}
		return types
	case KindJson:
		return []string{"array", "boolean", "integer", "number", "object", "string"}
	default:
		return "string"
	}
}

// typeValue prepends "null" to the JSON type when the parameter is optional.
func (p *Parameter) typeValue() any {
	t := p.jsonType()
	if p.required {
		return t
	}
	if list, ok := t.([]string); ok {
		return append([]string{"null"}, list...)
	}
	return []string{"null", t.(string)}
}

// ToSchema emits the descriptor's JSON-Schema fragment.
func (p *Parameter) ToSchema() map[string]any {
	s := map[string]any{
		"type":        p.typeValue(),
		"description": p.description,
	}
	if p.def != nil {
		s["default"] = p.def
	}

	switch p.kind {
	case KindString:
		p.stringConstraints(s)
	case KindEnum:
		s["enum"] = p.enum
	case KindUri:
		s["format"] = "uri"
		s["minLength"] = 1
	case KindUuid:
		s["pattern"] = uuidPattern
	case KindIsoDate:
		s["pattern"] = isoDatePattern
	case KindNaiveIsoDate:
		s["pattern"] = naiveIsoDatePattern
	case KindLocalIsoDateTime:
		s["pattern"] = localIsoDateTimePattern
	case KindInt, KindFloat:
		if p.minimum != nil {
			s["minimum"] = *p.minimum
		}
		if p.maximum != nil {
			s["maximum"] = *p.maximum
		}
	case KindResolverObject:
		// Property values may arrive as deferred-expression strings, so the
		// declared property types cannot be checked statically. Contents are
		// checked at parse and resolve time instead.
	case KindObject:
		props := make(map[string]any, len(p.properties))
		var req []string
		for _, name := range p.propertyNames() {
			props[name] = p.properties[name].ToSchema()
			if p.properties[name].IsRequired() {
				req = append(req, name)
			}
		}
		s["properties"] = props
		// Draft-4 rejects an empty required array.
		if len(req) > 0 {
			s["required"] = req
		}
	case KindLooseObject:
		s["minProperties"] = 1
		s["patternProperties"] = map[string]any{p.keyRegex: p.valueType.ToSchema()}
		s["additionalProperties"] = false
	case KindStringMap:
		s["additionalProperties"] = map[string]any{
			"type":        "string",
			"description": "string values",
		}
	case KindArray:
		s["items"] = p.element.ToSchema()
		if p.minLength > 0 {
			s["minItems"] = p.minLength
		}
		if p.maxLength > 0 {
			s["maxItems"] = p.maxLength
		}
	case KindOneOf:
		s["oneOf"] = optionSchemas(p.options)
	case KindAnyOf:
		s["anyOf"] = optionSchemas(p.options)
	}

	for k, v := range p.extra {
		s[k] = v
	}
	return s
}

func (p *Parameter) stringConstraints(s map[string]any) {
	if p.pattern != "" {
		s["pattern"] = p.pattern
	}
	if p.minLength > 0 {
		s["minLength"] = p.minLength
	}
	if p.maxLength > 0 {
		s["maxLength"] = p.maxLength
	}
}

func optionSchemas(options []*Parameter) []any {
	out := make([]any, len(options))
	for i, o := range options {
		out[i] = o.ToSchema()
	}
	return out
}

// Document emits the descriptor as a top-level schema document carrying the
// Draft-4 version marker.
func (p *Parameter) Document() map[string]any {
	s := p.ToSchema()
	s["$schema"] = Draft4URL
	return s
}

func (p *Parameter) propertyNames() []string {
	names := make([]string, 0, len(p.properties))
	for name := range p.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse normalizes a raw JSON value. A nil value yields the parsed default
// for optional parameters and an error for required ones; context names the
// value's position in error messages.
func (p *Parameter) Parse(value any, context string) (any, error) {
	if value != nil {
		v, err := p.parse(value, context)
		if err != nil {
			return nil, fmt.Errorf("Exception while parsing %s: %s", context, err)
		}
		return v, nil
	}
	if !p.required {
		if p.def != nil {
			return p.Parse(p.def, context+"/-default-/")
		}
		return nil, nil
	}
	desc := p.description
	if len(desc) > descriptionLimit {
		desc = desc[:descriptionLimit]
	}
	return nil, fmt.Errorf("%s-Missing required parameter (description: %s)", context, desc)
}

func (p *Parameter) parse(value any, context string) (any, error) {
	switch p.kind {
	case KindString, KindUri, KindUuid, KindIsoDate, KindNaiveIsoDate, KindLocalIsoDateTime:
		return trimmedString(value)
	case KindEnum:
		s, err := trimmedString(value)
		if err != nil {
			return nil, err
		}
		for _, option := range p.enum {
			if s == option {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%s is not a valid value for Enum!", s)
	case KindBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%v is not a boolean", value)
		}
		return b, nil
	case KindInt:
		return coerceInt(value)
	case KindFloat:
		return coerceFloat(value)
	case KindObject:
		return p.parseObject(value, context)
	case KindResolverObject:
		return p.parseResolverObject(value, context)
	case KindLooseObject:
		return p.parseLooseObject(value, context)
	case KindStringMap:
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%v is not an object", value)
		}
		return m, nil
	case KindArray:
		return p.parseArray(value, context)
	case KindOneOf, KindAnyOf:
		return p.parseUnion(value, context)
	default: // KindJson
		return value, nil
	}
}

func (p *Parameter) parseObject(value any, context string) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%v is not an object", value)
	}
	out := make(map[string]any)
	for _, name := range p.propertyNames() {
		parsed, err := p.properties[name].Parse(m[name], fmt.Sprintf("%s[%s]", context, name))
		if err != nil {
			return nil, err
		}
		if parsed != nil {
			out[name] = parsed
		}
	}
	return out, nil
}

func (p *Parameter) parseLooseObject(value any, context string) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%v is not an object", value)
	}
	out := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parsed, err := p.valueType.Parse(m[k], fmt.Sprintf("%s[%s]", context, k))
		if err != nil {
			return nil, err
		}
		out[k] = parsed
	}
	return out, nil
}

func (p *Parameter) parseArray(value any, context string) (any, error) {
	arr, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%v is not an array", value)
	}
	out := make([]any, len(arr))
	for i, item := range arr {
		parsed, err := p.element.Parse(item, fmt.Sprintf("%s[%d/%d]", context, i, len(arr)))
		if err != nil {
			return nil, err
		}
		out[i] = parsed
	}
	return out, nil
}

// parseUnion tries each option in declaration order; the first non-nil
// parse wins. When nothing matches it returns the NoMatch sentinel so the
// caller can tell "no option" apart from a genuine null or false value.
func (p *Parameter) parseUnion(value any, context string) (any, error) {
	for _, option := range p.options {
		v, err := option.Parse(value, context)
		if err == nil && v != nil {
			return v, nil
		}
	}
	return NoMatch, nil
}

// NoMatchValue is the type of the NoMatch sentinel.
type NoMatchValue struct{}

// NoMatch is returned by union parameters when no option parses.
var NoMatch = NoMatchValue{}

func (NoMatchValue) String() string { return "<no match>" }

func trimmedString(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%v is not a string", value)
	}
	return strings.TrimSpace(s), nil
}

func coerceInt(value any) (int64, error) {
	switch n := value.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case string:
		var out int64
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &out); err != nil {
			return 0, fmt.Errorf("%q is not an integer", n)
		}
		return out, nil
	default:
		return 0, fmt.Errorf("%v is not an integer", value)
	}
}

func coerceFloat(value any) (float64, error) {
	switch n := value.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		var out float64
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &out); err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return out, nil
	default:
		return 0, fmt.Errorf("%v is not a number", value)
	}
}

func merged(m map[string]any, k string, v any) map[string]any {
	if m == nil {
		m = make(map[string]any)
	}
	m[k] = v
	return m
}

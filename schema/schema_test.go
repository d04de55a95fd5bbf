package schema

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringSchema(t *testing.T) {
	p := String("a name", WithPattern("^[a-z]+$"), WithMinLength(2), WithMaxLength(8))
	require.Equal(t, map[string]any{
		"type":        "string",
		"description": "a name",
		"pattern":     "^[a-z]+$",
		"minLength":   2,
		"maxLength":   8,
	}, p.ToSchema())
}

func TestOptionalTypeIncludesNull(t *testing.T) {
	p := String("a name", Optional())
	require.Equal(t, []string{"null", "string"}, p.ToSchema()["type"])
}

func TestDefaultImpliesOptional(t *testing.T) {
	p := Int("retries", WithDefault(3))
	require.False(t, p.IsRequired())
	s := p.ToSchema()
	require.Equal(t, []string{"null", "integer"}, s["type"])
	require.Equal(t, 3, s["default"])
}

func TestRequiredDefaultPanics(t *testing.T) {
	require.PanicsWithValue(t, "schema: required parameters can't have default values", func() {
		Int("retries", WithDefault(3), Require())
	})
}

func TestUuidSchema(t *testing.T) {
	s := Uuid("an id").ToSchema()
	require.Equal(t, "string", s["type"])
	require.Equal(t, uuidPattern, s["pattern"])
}

func TestObjectSchema(t *testing.T) {
	p := Object("params", map[string]*Parameter{
		"name":  String("who"),
		"count": Int("how many", Optional()),
	})
	s := p.ToSchema()
	require.Equal(t, "object", s["type"])
	require.Equal(t, []string{"name"}, s["required"])
	props := s["properties"].(map[string]any)
	require.Len(t, props, 2)
	require.Equal(t, "string", props["name"].(map[string]any)["type"])
}

func TestObjectSchemaOmitsEmptyRequired(t *testing.T) {
	p := Object("params", map[string]*Parameter{"x": String("x", Optional())})
	_, present := p.ToSchema()["required"]
	require.False(t, present)
}

func TestArraySchema(t *testing.T) {
	p := Array("tags", String("a tag"), WithMinItems(1), WithMaxItems(5), Unique())
	s := p.ToSchema()
	require.Equal(t, "array", s["type"])
	require.Equal(t, 1, s["minItems"])
	require.Equal(t, 5, s["maxItems"])
	require.Equal(t, true, s["uniqueItems"])
	require.Equal(t, "string", s["items"].(map[string]any)["type"])
}

func TestLooseObjectSchema(t *testing.T) {
	p := LooseObject("env", String("a value"), WithKeyPattern("^[A-Z_]+$"))
	s := p.ToSchema()
	require.Equal(t, 1, s["minProperties"])
	require.Equal(t, false, s["additionalProperties"])
	patterns := s["patternProperties"].(map[string]any)
	require.Contains(t, patterns, "^[A-Z_]+$")
}

func TestUnionSchema(t *testing.T) {
	p := OneOf("id or count", []*Parameter{Uuid("an id"), Int("a count")})
	s := p.ToSchema()
	require.Equal(t, []string{"string", "integer"}, s["type"])
	require.Len(t, s["oneOf"], 2)
}

func TestJsonSchemaType(t *testing.T) {
	s := Json("anything").ToSchema()
	require.Equal(t, []string{"array", "boolean", "integer", "number", "object", "string"}, s["type"])
}

func TestDocumentCarriesDraft4(t *testing.T) {
	doc := String("a name").Document()
	require.Equal(t, "http://json-schema.org/draft-04/schema#", doc["$schema"])
}

func TestParseTrimsStrings(t *testing.T) {
	v, err := String("a name").Parse("  padded  ", "params[name]")
	require.NoError(t, err)
	require.Equal(t, "padded", v)
}

func TestParseEnum(t *testing.T) {
	p := Enum("a color", []string{"red", "green"})
	v, err := p.Parse(" red ", "params[color]")
	require.NoError(t, err)
	require.Equal(t, "red", v)

	_, err = p.Parse("blue", "params[color]")
	require.EqualError(t, err, "Exception while parsing params[color]: blue is not a valid value for Enum!")
}

func TestParseIntCoercion(t *testing.T) {
	p := Int("a count")
	for _, in := range []any{42, int64(42), 42.0, "42", " 42 "} {
		v, err := p.Parse(in, "params[count]")
		require.NoError(t, err, "input %v", in)
		require.Equal(t, int64(42), v)
	}
	_, err := p.Parse("nope", "params[count]")
	require.ErrorContains(t, err, "is not an integer")
}

func TestParseFloatCoercion(t *testing.T) {
	v, err := Float("a ratio").Parse("2.5", "params[ratio]")
	require.NoError(t, err)
	require.Equal(t, 2.5, v)
}

func TestParseMissingRequired(t *testing.T) {
	p := String("a very long description that exceeds the forty character excerpt limit")
	_, err := p.Parse(nil, "params[name]")
	require.EqualError(t, err, "params[name]-Missing required parameter (description: a very long description that exceeds the)")
}

func TestParseMissingOptional(t *testing.T) {
	v, err := String("a name", Optional()).Parse(nil, "params[name]")
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestParseDefaultUsesDefaultContext(t *testing.T) {
	p := Enum("a color", []string{"red"}, WithDefault("blue"))
	_, err := p.Parse(nil, "params[color]")
	require.EqualError(t, err, "Exception while parsing params[color]/-default-/: blue is not a valid value for Enum!")

	v, err := Enum("a color", []string{"red"}, WithDefault("red")).Parse(nil, "params[color]")
	require.NoError(t, err)
	require.Equal(t, "red", v)
}

func TestParseObjectPropagatesContext(t *testing.T) {
	p := Object("params", map[string]*Parameter{"name": String("who")})
	_, err := p.Parse(map[string]any{}, "params")
	require.EqualError(t, err, "Exception while parsing params: params[name]-Missing required parameter (description: who)")

	v, err := p.Parse(map[string]any{"name": " jo ", "stray": true}, "params")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "jo"}, v)
}

func TestParseArrayContextShowsPosition(t *testing.T) {
	p := Array("counts", Int("a count"))
	_, err := p.Parse([]any{1.0, "bad", 3.0}, "params[counts]")
	require.ErrorContains(t, err, fmt.Sprintf("params[counts][%d/%d]", 1, 3))

	v, err := p.Parse([]any{1.0, 2.0}, "params[counts]")
	require.NoError(t, err)
	require.Equal(t, []any{int64(1), int64(2)}, v)
}

func TestParseUnionFirstMatchWins(t *testing.T) {
	p := OneOf("id or count", []*Parameter{Int("a count"), String("a name")})
	v, err := p.Parse("7", "params[v]")
	require.NoError(t, err)
	require.Equal(t, int64(7), v)
}

func TestParseUnionNoMatchSentinel(t *testing.T) {
	p := AnyOf("a flag", []*Parameter{Int("a count"), Boolean("a flag")})
	v, err := p.Parse(map[string]any{}, "params[v]")
	require.NoError(t, err)
	require.Equal(t, NoMatch, v)
}

func TestParseLooseObject(t *testing.T) {
	p := LooseObject("env", Int("a value"))
	v, err := p.Parse(map[string]any{"A": "1", "B": 2.0}, "params[env]")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"A": int64(1), "B": int64(2)}, v)
}

func TestParseJsonIdentity(t *testing.T) {
	in := map[string]any{"nested": []any{1.0, "two"}}
	v, err := Json("anything").Parse(in, "params[v]")
	require.NoError(t, err)
	require.Equal(t, in, v)
}

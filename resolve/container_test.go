package resolve

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func upper(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("not a string: %v", v)
	}
	return strings.ToUpper(s), nil
}

func TestWrapperConcreteTransformsEagerly(t *testing.T) {
	w := NewWrapper("hello", upper)
	v, err := w.Get("greeting")
	require.NoError(t, err)
	require.Equal(t, "HELLO", v)
}

func TestWrapperConcreteTransformErrorSurfaces(t *testing.T) {
	w := NewWrapper(7.0, upper)
	_, err := w.Get("greeting")
	require.ErrorContains(t, err, "not a string")
}

func TestWrapperResolverEvaluatesOnFirstGet(t *testing.T) {
	r := New("<(return 'hello'")
	w := WrapResolver(r, upper)
	require.False(t, r.IsEvaluated())

	v, err := w.Get("greeting")
	require.NoError(t, err)
	require.Equal(t, "HELLO", v)
	require.True(t, r.IsEvaluated())

	// idempotent
	v, err = w.Get("greeting")
	require.NoError(t, err)
	require.Equal(t, "HELLO", v)
}

func TestWrapperUnresolvableMessage(t *testing.T) {
	w := WrapResolver(New("<(open('x')"), nil)
	_, err := w.Get("params/target")
	require.EqualError(t, err, "params/target is not resolvable!")
}

func TestContainerAccess(t *testing.T) {
	c := NewContainer("params")
	c.Add("plain", "value", nil)
	c.Add("coded", "<(return 'generated'", nil)

	require.Equal(t, "value", c.Get("plain"))
	require.Equal(t, "generated", c.Get("coded"))
	require.True(t, c.Has("plain"))
	require.False(t, c.Has("missing"))
	require.Nil(t, c.Get("missing"))
	require.Equal(t, []string{"plain", "coded"}, c.Names())
}

func TestContainerRecordsLookupErrors(t *testing.T) {
	c := NewContainer("params")
	c.Add("broken", "<(open('x')", nil)

	require.Nil(t, c.Get("broken"))
	last := c.Timeline().Last()
	require.NotNil(t, last)
	require.Equal(t, "params/broken is not resolvable!", last.Messages[0])
}

func TestContainerEvaluateCollectsErrors(t *testing.T) {
	c := NewContainer("params")
	c.Add("good", "<(return 1", nil)
	c.Add("bad", "<(open('x')", nil)
	c.Add("plain", "untouched", nil)

	c.Evaluate()
	require.Equal(t, 1.0, c.Get("good"))
	require.Nil(t, c.Get("bad"))

	events := c.Timeline().Events()
	require.Len(t, events, 1)
	require.Equal(t, "params/bad is not resolvable!", events[0].Messages[0])
}

func TestContainerSkipResolver(t *testing.T) {
	raw := map[string]any{"inner": "<(return 1"}
	c := NewContainer("params")
	c.Add("nested", raw, nil, SkipResolver())

	// value stored directly, code left unevaluated
	require.Equal(t, raw, c.Get("nested"))
}

func TestContainerToJSONShallow(t *testing.T) {
	c := NewContainer("params")
	c.Add("plain", "value", nil)
	c.Add("coded", "<(return 2", nil)

	j := c.ToJSON(false)
	require.Equal(t, map[string]any{"plain": "value", "coded": 2.0}, j)
}

func TestContainerToJSONDetailed(t *testing.T) {
	c := NewContainer("params")
	c.Add("plain", "value", nil)
	c.Add("coded", "<(return 2", nil)
	c.Evaluate()

	j := c.ToJSON(true)
	require.Equal(t, "value", j["plain"])

	detail, ok := j["coded"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "<(return 2", detail["input"])
	require.Equal(t, 2.0, detail["result"])
	require.Equal(t, true, detail["resolved"])
}

func TestContainerResolverOptions(t *testing.T) {
	c := NewContainer("params", WithTimeout(1))
	c.Add("slow", []any{"<(", "while (true) {}"}, nil)

	require.Nil(t, c.Get("slow"))
	require.Equal(t, "params/slow is not resolvable!", c.Timeline().Last().Messages[0])
}

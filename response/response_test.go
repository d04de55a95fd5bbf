package response

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusDispositions(t *testing.T) {
	cases := map[Status]Disposition{
		StatusSuccess:             Complete,
		StatusInvalid:             Fail,
		StatusFatal:               Fail,
		StatusFailed:              Cancel,
		StatusError:               Cancel,
		StatusDefer:               Cancel,
		StatusCachedResultPending: Cancel,
		StatusUnknown:             Fail,
	}
	for status, want := range cases {
		require.Equal(t, want, status.Disposition(), "status %s", status)
	}
	require.True(t, StatusFailed.Retry())
	require.False(t, StatusFatal.Retry())
}

func TestToJSONFixedShape(t *testing.T) {
	r := New(StatusSuccess)
	r.ActivityResult = "some result"

	require.Equal(t, map[string]any{
		"status": "SUCCESS",
		"notes":  []string{},
		"trace":  []string{},
		"reason": nil,
		"result": "some result",
	}, r.ToJSON())
}

func TestToJSONUnwrapsResultOneLevel(t *testing.T) {
	r := New(StatusSuccess)
	r.ActivityResult = RawResult{Value: map[string]any{"k": "v"}}
	require.Equal(t, map[string]any{"k": "v"}, r.ToJSON()["result"])
}

func TestToJSONOptionalBlocks(t *testing.T) {
	r := New(StatusInvalid)
	r.Instance = "worker-1"
	r.ValidationErrors = []ValidationError{{
		Message:        "1 is not of type 'string'",
		Path:           "stuff",
		RelativePath:   "stuff",
		AbsolutePath:   "stuff",
		Validator:      "type",
		ValidatorValue: "string",
	}}
	r.CacheKey = "key-1"
	r.CacheTime = "2024-01-01T00:00:00Z"
	r.CacheExpiration = "2024-02-01T00:00:00Z"
	r.RunID = "run"
	r.WorkflowID = "wf"
	r.SectionName = "section"

	j := r.ToJSON()
	require.Equal(t, "worker-1", j["instance"])
	require.Len(t, j["validation_errors"], 1)
	cache := j["cache"].(map[string]any)
	require.Equal(t, "key-1", cache["key"])
	require.Equal(t, "run", cache["runId"])
}

func TestFromJSONRequiresObjectWithStatus(t *testing.T) {
	_, err := FromJSON("nope")
	require.ErrorContains(t, err, "Invalid Response Format!")

	_, err = FromJSON(map[string]any{"notes": []any{}})
	require.ErrorContains(t, err, "no status")
}

func TestRoundTrip(t *testing.T) {
	r := New(StatusFailed)
	r.ActivityResult = "oops"
	r.Notes = []string{"note one", "note two"}
	r.Trace = []string{"frame 1", "frame 2"}
	r.Reason = "oops"
	r.Instance = "worker-9"

	first := r.ToJSON()
	rebuilt, err := FromJSON(first)
	require.NoError(t, err)
	requireSameJSON(t, first, rebuilt.ToJSON())
}

func TestRoundTripThroughSerialization(t *testing.T) {
	r := New(StatusInvalid)
	r.ValidationErrors = []ValidationError{{
		Message:        "'stuff' is a required property",
		Validator:      "required",
		ValidatorValue: []any{"stuff"},
	}}
	r.CacheKey = "abc"
	r.CacheTime = "2024-01-01T00:00:00Z"
	r.CacheExpiration = "2024-03-01T00:00:00Z"

	s, err := r.Serialize()
	require.NoError(t, err)

	rebuilt, err := Deserialize(s)
	require.NoError(t, err)
	requireSameJSON(t, r.ToJSON(), rebuilt.ToJSON())
}

func TestParseResult(t *testing.T) {
	require.Equal(t, map[string]any{"a": 1.0}, ParseResult(`{"a": 1}`))
	require.Equal(t, "plain text", ParseResult("plain text"))
}

func requireSameJSON(t *testing.T, want, got any) {
	t.Helper()
	wb, err := json.Marshal(want)
	require.NoError(t, err)
	gb, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, string(wb), string(gb))
}

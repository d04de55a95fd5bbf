package timeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAppendKeepsOrder(t *testing.T) {
	tl := New()
	tl.NoteEvent("first")
	tl.WarningEvent("second")
	tl.ErrorEvent("third")

	events := tl.Events()
	require.Len(t, events, 3)
	require.Equal(t, Note, events[0].Type)
	require.Equal(t, Warning, events[1].Type)
	require.Equal(t, Error, events[2].Type)
	require.Equal(t, []string{"third"}, events[2].Messages)
}

func TestConsecutiveDuplicatesDropped(t *testing.T) {
	tl := New()
	tl.ErrorEvent("boom")
	tl.ErrorEvent("boom")
	tl.NoteEvent("boom") // same messages, different type: still a duplicate
	require.Len(t, tl.Events(), 1)

	tl.NoteEvent("other")
	tl.ErrorEvent("boom")
	require.Len(t, tl.Events(), 3)
}

func TestNeverTwoAdjacentEqualMessageLists(t *testing.T) {
	tl := New()
	inputs := [][]string{{"a"}, {"a"}, {"b", "c"}, {"b", "c"}, {"a"}, {"a"}, {"a"}}
	for _, msgs := range inputs {
		tl.NoteEvent(msgs...)
	}
	events := tl.Events()
	for i := 1; i < len(events); i++ {
		require.NotEqual(t, events[i-1].Messages, events[i].Messages)
	}
}

func TestLast(t *testing.T) {
	tl := New()
	require.Nil(t, tl.Last())
	tl.NoteEvent("one")
	tl.SuccessEvent("two")
	require.Equal(t, []string{"two"}, tl.Last().Messages)
	require.Equal(t, Success, tl.Last().Type)
}

func TestJSONWithoutClock(t *testing.T) {
	tl := New()
	tl.NoteEvent("hello")

	b, err := json.Marshal(tl)
	require.NoError(t, err)
	require.JSONEq(t, `[{"eventType":"NOTE","messages":["hello"],"when":"--"}]`, string(b))
}

func TestJSONWithClock(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	tl := New(WithClock(func() time.Time { return at }))
	tl.SuccessEvent("done")

	out := tl.ToJSON()
	require.Len(t, out, 1)
	entry := out[0].(map[string]any)
	require.Equal(t, "SUCCESS", entry["eventType"])
	require.Equal(t, "2024-03-01T12:30:00Z", entry["when"])
}

// Package timeline records ordered annotations produced while evaluating
// deferred values. A timeline is an append-only event log; appending an event
// whose messages equal the previous event's is a no-op so repeated evaluation
// attempts do not flood the log.
package timeline

import (
	"encoding/json"
	"slices"
	"time"
)

// EventType classifies a timeline entry.
type EventType string

const (
	// Note marks an informational entry.
	Note EventType = "NOTE"
	// Warning marks a recoverable anomaly.
	Warning EventType = "WARNING"
	// Error marks a failure entry.
	Error EventType = "ERROR"
	// Success marks a completed step.
	Success EventType = "SUCCESS"
)

type (
	// Event is a single timeline entry. When is nil for entries recorded
	// without a clock; those serialize with "--" in place of a timestamp.
	Event struct {
		Type     EventType
		Messages []string
		When     *time.Time
	}

	// Timeline is an ordered event log. The zero value is not usable; build
	// one with New. Timelines are not safe for concurrent use; each belongs
	// to a single resolver or container.
	Timeline struct {
		clock  func() time.Time
		events []Event
	}

	// Option customizes a Timeline at construction. The clock cannot be
	// changed once the timeline exists.
	Option func(*Timeline)
)

// WithClock stamps every appended event with the given clock. Without it
// events carry no timestamp.
func WithClock(clock func() time.Time) Option {
	return func(t *Timeline) { t.clock = clock }
}

// New builds an empty timeline.
func New(opts ...Option) *Timeline {
	t := &Timeline{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NoteEvent appends a NOTE entry.
func (t *Timeline) NoteEvent(messages ...string) { t.add(Note, messages) }

// WarningEvent appends a WARNING entry.
func (t *Timeline) WarningEvent(messages ...string) { t.add(Warning, messages) }

// ErrorEvent appends an ERROR entry.
func (t *Timeline) ErrorEvent(messages ...string) { t.add(Error, messages) }

// SuccessEvent appends a SUCCESS entry.
func (t *Timeline) SuccessEvent(messages ...string) { t.add(Success, messages) }

func (t *Timeline) add(typ EventType, messages []string) {
	if n := len(t.events); n > 0 && slices.Equal(t.events[n-1].Messages, messages) {
		return
	}
	e := Event{Type: typ, Messages: messages}
	if t.clock != nil {
		now := t.clock()
		e.When = &now
	}
	t.events = append(t.events, e)
}

// Events returns the recorded entries in order.
func (t *Timeline) Events() []Event {
	return slices.Clone(t.events)
}

// Last returns the most recent entry, or nil when the timeline is empty.
func (t *Timeline) Last() *Event {
	if len(t.events) == 0 {
		return nil
	}
	e := t.events[len(t.events)-1]
	return &e
}

// ToJSON projects the timeline into plain JSON values.
func (t *Timeline) ToJSON() []any {
	out := make([]any, len(t.events))
	for i, e := range t.events {
		out[i] = e.toJSON()
	}
	return out
}

// MarshalJSON encodes the timeline as an array of events.
func (t *Timeline) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.ToJSON())
}

func (e Event) toJSON() map[string]any {
	when := "--"
	if e.When != nil {
		when = e.When.Format(time.RFC3339Nano)
	}
	messages := e.Messages
	if messages == nil {
		messages = []string{}
	}
	return map[string]any{
		"eventType": string(e.Type),
		"messages":  messages,
		"when":      when,
	}
}

// MarshalJSON encodes the event as {eventType, messages, when}.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.toJSON())
}

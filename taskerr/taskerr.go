// Package taskerr defines the typed failure taxonomy handlers use to tell
// the orchestrator what to do with a task. Each error carries a response
// status, which fixes the report channel: INVALID and FATAL fail the task
// (no retry) while FAILED, ERROR and DEFER cancel it so the orchestrator
// retries. Errors capture their construction stack and may wrap a cause and
// carry handler notes.
package taskerr

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/workfleet/fulfill/response"
)

type (
	// Error is a structured task failure. Build one with the status-specific
	// constructors; the zero value is not meaningful.
	Error struct {
		status  response.Status
		message string
		cause   error
		notes   []string
		trace   []string
	}

	// Option customizes an Error at construction.
	Option func(*Error)
)

// WithCause attaches the underlying error. Its text is appended to the
// message and its trace (when it is a task error) is appended on demand.
func WithCause(cause error) Option {
	return func(e *Error) { e.cause = cause }
}

// WithNotes attaches human-readable annotations for the response envelope.
func WithNotes(notes ...string) Option {
	return func(e *Error) { e.notes = notes }
}

// NewValidation builds an INVALID error: a retry without fixing the input
// will not work.
func NewValidation(message string, opts ...Option) *Error {
	return newError(response.StatusInvalid, message, opts...)
}

// NewFatal builds a FATAL error: a retry with the current input will not
// work.
func NewFatal(message string, opts ...Option) *Error {
	return newError(response.StatusFatal, message, opts...)
}

// NewFailed builds a FAILED error: a retry might work.
func NewFailed(message string, opts ...Option) *Error {
	return newError(response.StatusFailed, message, opts...)
}

// NewError builds an ERROR error: an error was encountered, retry might
// work.
func NewError(message string, opts ...Option) *Error {
	return newError(response.StatusError, message, opts...)
}

// NewDefer builds a DEFER error: the result is not yet available, retry.
func NewDefer(message string, opts ...Option) *Error {
	return newError(response.StatusDefer, message, opts...)
}

// WithStatus builds an error with an explicit status. Used by the worker to
// wrap untyped handler failures with its configured default.
func WithStatus(status response.Status, message string, opts ...Option) *Error {
	return newError(status, message, opts...)
}

func newError(status response.Status, message string, opts ...Option) *Error {
	e := &Error{status: status, message: message}
	for _, opt := range opts {
		opt(e)
	}
	e.trace = captureTrace()
	return e
}

// FromError returns err as a task error, wrapping untyped errors with the
// given fallback status.
func FromError(err error, fallback response.Status) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return WithStatus(fallback, "unhandled exception", WithCause(err))
}

// Error implements the error interface. A cause is appended to the message
// the way the wire protocol expects it.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the cause to support errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// ResponseCode returns the response status this error maps to.
func (e *Error) ResponseCode() response.Status { return e.status }

// Retry reports whether the orchestrator should retry the task.
func (e *Error) Retry() bool { return e.status.Retry() }

// Notes returns the attached annotations.
func (e *Error) Notes() []string { return e.notes }

// Trace returns the captured stack frames, with the cause's frames appended
// when the cause is itself a task error.
func (e *Error) Trace() []string {
	trace := make([]string, len(e.trace))
	copy(trace, e.trace)
	var inner *Error
	if e.cause != nil && errors.As(e.cause, &inner) {
		trace = append(trace, inner.Trace()...)
	}
	return trace
}

// captureTrace records the current stack as "func (file:line)" frames.
// Runtime plumbing and this package's own constructors are filtered out so
// the first frame is the raising caller.
func captureTrace() []string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var out []string
	for {
		frame, more := frames.Next()
		if keepFrame(frame) {
			out = append(out, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return out
}

func keepFrame(frame runtime.Frame) bool {
	return frame.Function != "" &&
		!strings.HasPrefix(frame.Function, "runtime.") &&
		!strings.HasSuffix(frame.File, "taskerr/taskerr.go")
}

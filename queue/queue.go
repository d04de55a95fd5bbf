// Package queue abstracts the orchestrator task queue an activity worker
// polls. The contract is deliberately small: long-poll for one task, then
// report it completed, cancelled, or failed.
package queue

import "context"

// ReasonLimit is the maximum failure reason length the orchestrator accepts.
const ReasonLimit = 256

type (
	// Task is one unit of work handed out by the queue.
	Task struct {
		// Token identifies the task in respond calls.
		Token string
		// Input is the raw activity input payload.
		Input string
		// ActivityID names the scheduled activity, when the queue provides it.
		ActivityID string
		// WorkflowID and RunID identify the owning workflow execution.
		WorkflowID string
		RunID      string
	}

	// TaskQueue is the orchestrator-facing contract.
	TaskQueue interface {
		// Poll long-polls for one task. A nil task with a nil error means the
		// poll timed out with nothing to do.
		Poll(ctx context.Context) (*Task, error)
		// Complete reports a successful task with its result payload.
		Complete(ctx context.Context, token, result string) error
		// Cancel reports a retryable failure with its details payload.
		Cancel(ctx context.Context, token, details string) error
		// Fail reports a permanent failure. Implementations truncate reason
		// to ReasonLimit bytes.
		Fail(ctx context.Context, token, reason, details string) error
	}
)

// TruncateReason clips a failure reason to the orchestrator's limit.
func TruncateReason(reason string) string {
	if len(reason) > ReasonLimit {
		return reason[:ReasonLimit]
	}
	return reason
}

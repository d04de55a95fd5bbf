// Package memory provides an in-process task queue used by tests and local
// development. Pushed tasks are handed out in order and every respond call
// is recorded.
package memory

import (
	"context"
	"sync"

	"github.com/workfleet/fulfill/queue"
)

type (
	// Outcome records one respond call.
	Outcome struct {
		Kind    string // "complete", "cancel" or "fail"
		Token   string
		Payload string
		Reason  string
	}

	// Queue implements queue.TaskQueue in memory.
	Queue struct {
		mu       sync.Mutex
		tasks    []*queue.Task
		outcomes []Outcome
	}
)

var _ queue.TaskQueue = (*Queue)(nil)

// New builds an empty queue.
func New() *Queue {
	return &Queue{}
}

// Push enqueues a task for the next Poll.
func (q *Queue) Push(task *queue.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
}

// Poll pops the oldest task, or returns nil when the queue is empty.
func (q *Queue) Poll(ctx context.Context) (*queue.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil, nil
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, nil
}

// Complete records a completed task.
func (q *Queue) Complete(ctx context.Context, token, result string) error {
	q.record(Outcome{Kind: "complete", Token: token, Payload: result})
	return nil
}

// Cancel records a cancelled task.
func (q *Queue) Cancel(ctx context.Context, token, details string) error {
	q.record(Outcome{Kind: "cancel", Token: token, Payload: details})
	return nil
}

// Fail records a failed task, truncating the reason like a real queue.
func (q *Queue) Fail(ctx context.Context, token, reason, details string) error {
	q.record(Outcome{Kind: "fail", Token: token, Payload: details, Reason: queue.TruncateReason(reason)})
	return nil
}

func (q *Queue) record(o Outcome) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.outcomes = append(q.outcomes, o)
}

// Outcomes returns every respond call in order.
func (q *Queue) Outcomes() []Outcome {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Outcome, len(q.outcomes))
	copy(out, q.outcomes)
	return out
}

// LastOutcome returns the most recent respond call, or nil.
func (q *Queue) LastOutcome() *Outcome {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.outcomes) == 0 {
		return nil
	}
	o := q.outcomes[len(q.outcomes)-1]
	return &o
}

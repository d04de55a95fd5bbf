// Package swf implements the task queue contract on Amazon Simple Workflow
// Service activity tasks.
package swf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsswf "github.com/aws/aws-sdk-go-v2/service/swf"
	"github.com/aws/aws-sdk-go-v2/service/swf/types"
	"github.com/cenkalti/backoff/v4"

	"github.com/workfleet/fulfill/queue"
)

// Client is the subset of the SWF API the queue uses.
type Client interface {
	PollForActivityTask(ctx context.Context, params *awsswf.PollForActivityTaskInput, optFns ...func(*awsswf.Options)) (*awsswf.PollForActivityTaskOutput, error)
	RespondActivityTaskCompleted(ctx context.Context, params *awsswf.RespondActivityTaskCompletedInput, optFns ...func(*awsswf.Options)) (*awsswf.RespondActivityTaskCompletedOutput, error)
	RespondActivityTaskCanceled(ctx context.Context, params *awsswf.RespondActivityTaskCanceledInput, optFns ...func(*awsswf.Options)) (*awsswf.RespondActivityTaskCanceledOutput, error)
	RespondActivityTaskFailed(ctx context.Context, params *awsswf.RespondActivityTaskFailedInput, optFns ...func(*awsswf.Options)) (*awsswf.RespondActivityTaskFailedOutput, error)
}

type (
	// Options configures a Queue.
	Options struct {
		// Client is the SWF client. Required.
		Client Client
		// Domain is the SWF domain to poll. Required.
		Domain string
		// TaskList is the activity task list name. Required.
		TaskList string
		// Identity labels this worker in poll calls. Optional.
		Identity string
		// MaxPollElapsed bounds transient-error retries around one poll.
		// Defaults to two minutes.
		MaxPollElapsed time.Duration
	}

	// Queue implements queue.TaskQueue on SWF.
	Queue struct {
		client         Client
		domain         string
		taskList       string
		identity       string
		maxPollElapsed time.Duration
	}
)

var _ queue.TaskQueue = (*Queue)(nil)

// New builds an SWF-backed queue.
func New(opts Options) (*Queue, error) {
	if opts.Client == nil {
		return nil, errors.New("client is required")
	}
	if opts.Domain == "" {
		return nil, errors.New("domain is required")
	}
	if opts.TaskList == "" {
		return nil, errors.New("task list is required")
	}
	maxElapsed := opts.MaxPollElapsed
	if maxElapsed == 0 {
		maxElapsed = 2 * time.Minute
	}
	return &Queue{
		client:         opts.Client,
		domain:         opts.Domain,
		taskList:       opts.TaskList,
		identity:       opts.Identity,
		maxPollElapsed: maxElapsed,
	}, nil
}

// Poll long-polls SWF for one activity task, retrying transient errors with
// exponential backoff. An empty task token means the poll timed out.
func (q *Queue) Poll(ctx context.Context) (*queue.Task, error) {
	input := &awsswf.PollForActivityTaskInput{
		Domain:   aws.String(q.domain),
		TaskList: &types.TaskList{Name: aws.String(q.taskList)},
	}
	if q.identity != "" {
		input.Identity = aws.String(q.identity)
	}

	var out *awsswf.PollForActivityTaskOutput
	poll := func() error {
		var err error
		out, err = q.client.PollForActivityTask(ctx, input)
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = q.maxPollElapsed
	if err := backoff.Retry(poll, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("poll activity task: %w", err)
	}
	if out.TaskToken == nil || *out.TaskToken == "" {
		return nil, nil
	}

	task := &queue.Task{
		Token:      *out.TaskToken,
		Input:      aws.ToString(out.Input),
		ActivityID: aws.ToString(out.ActivityId),
	}
	if out.WorkflowExecution != nil {
		task.WorkflowID = aws.ToString(out.WorkflowExecution.WorkflowId)
		task.RunID = aws.ToString(out.WorkflowExecution.RunId)
	}
	return task, nil
}

// Complete reports the task completed with its result payload.
func (q *Queue) Complete(ctx context.Context, token, result string) error {
	_, err := q.client.RespondActivityTaskCompleted(ctx, &awsswf.RespondActivityTaskCompletedInput{
		TaskToken: aws.String(token),
		Result:    aws.String(result),
	})
	if err != nil {
		return fmt.Errorf("respond completed: %w", err)
	}
	return nil
}

// Cancel reports the task cancelled so the workflow can retry it.
func (q *Queue) Cancel(ctx context.Context, token, details string) error {
	_, err := q.client.RespondActivityTaskCanceled(ctx, &awsswf.RespondActivityTaskCanceledInput{
		TaskToken: aws.String(token),
		Details:   aws.String(details),
	})
	if err != nil {
		return fmt.Errorf("respond canceled: %w", err)
	}
	return nil
}

// Fail reports the task failed. The reason is truncated to the SWF limit.
func (q *Queue) Fail(ctx context.Context, token, reason, details string) error {
	_, err := q.client.RespondActivityTaskFailed(ctx, &awsswf.RespondActivityTaskFailedInput{
		TaskToken: aws.String(token),
		Reason:    aws.String(queue.TruncateReason(reason)),
		Details:   aws.String(details),
	})
	if err != nil {
		return fmt.Errorf("respond failed: %w", err)
	}
	return nil
}

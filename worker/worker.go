// Package worker implements the activity execution loop: long-poll the task
// queue, decode and validate the event, parse declared parameters, invoke
// the handler, and report the enveloped outcome back to the orchestrator.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"goa.design/clue/log"
	"golang.org/x/time/rate"

	"github.com/workfleet/fulfill/queue"
	"github.com/workfleet/fulfill/response"
	"github.com/workfleet/fulfill/schema"
	"github.com/workfleet/fulfill/taskerr"
	"github.com/workfleet/fulfill/zipper"
)

type (
	// Request carries one task into a handler.
	Request struct {
		// Args maps normalized parameter names to parsed values.
		Args map[string]any
		// Params is the raw event view.
		Params *Params
		// Task is the queue task being worked.
		Task *queue.Task
		// Debug is set when the event carries DEBUG_MODE.
		Debug bool
	}

	// Handler executes one activity. It returns the activity result, optional
	// notes for the response envelope, and an error. Typed *taskerr.Error
	// values choose the response status; any other error is wrapped with the
	// worker's default status.
	Handler func(ctx context.Context, req *Request) (any, []string, error)

	// Options configures a Worker.
	Options struct {
		// ActivityName and ActivityVersion identify the activity; the task
		// list is their concatenation. Both required.
		ActivityName    string
		ActivityVersion string
		// Description documents the activity in its schema document.
		Description string
		// Parameters declares the activity's parameters by name.
		Parameters map[string]*schema.Parameter
		// Result declares the activity result. Optional; without it results
		// pass through unparsed.
		Result *schema.Parameter
		// Handler executes tasks. Required.
		Handler Handler
		// DebugHandler executes tasks carrying DEBUG_MODE. Optional.
		DebugHandler Handler
		// Queue is the task queue to poll. Required.
		Queue queue.TaskQueue
		// Zipper is the size-limit codec. Defaults to a zip-only codec.
		Zipper *zipper.Zipper
		// Limit is the per-payload ceiling. Defaults to zipper.Limit.
		Limit int
		// DefaultStatus wraps untyped handler failures. Defaults to FAILED.
		DefaultStatus response.Status
		// DisableProtocol bypasses the response envelope for every task, as
		// the DISABLE_PROTOCOL event key does for one.
		DisableProtocol bool
		// Instance identifies this worker in responses and logs. Optional;
		// when empty, responses carry no instance field.
		Instance string
		// PollInterval paces RunLoop iterations. Zero polls back to back.
		PollInterval time.Duration
	}

	// Worker executes activity tasks one at a time.
	Worker struct {
		name            string
		version         string
		description     string
		parameters      map[string]*schema.Parameter
		paramNames      []string
		paramsSchema    *schema.Parameter
		validator       *schema.Validator
		result          *schema.Parameter
		handler         Handler
		debugHandler    Handler
		queue           queue.TaskQueue
		zipper          *zipper.Zipper
		limit           int
		defaultStatus   response.Status
		disableProtocol bool
		limiter         *rate.Limiter
		instance        string
	}
)

// New builds a Worker.
func New(opts Options) (*Worker, error) {
	if opts.ActivityName == "" {
		return nil, errors.New("activity name is required")
	}
	if opts.ActivityVersion == "" {
		return nil, errors.New("activity version is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("handler is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("queue is required")
	}

	params := opts.Parameters
	if params == nil {
		params = map[string]*schema.Parameter{}
	}
	paramsSchema := schema.Object(opts.Description, params)
	validator, err := schema.NewValidator(paramsSchema)
	if err != nil {
		return nil, fmt.Errorf("build validator: %w", err)
	}

	z := opts.Zipper
	if z == nil {
		z = zipper.New(zipper.Options{})
	}
	limit := opts.Limit
	if limit == 0 {
		limit = zipper.Limit
	}
	status := opts.DefaultStatus
	if status == "" {
		status = response.StatusFailed
	}
	every := rate.Inf
	if opts.PollInterval > 0 {
		every = rate.Every(opts.PollInterval)
	}

	w := &Worker{
		name:            opts.ActivityName,
		version:         opts.ActivityVersion,
		description:     opts.Description,
		parameters:      params,
		paramsSchema:    paramsSchema,
		validator:       validator,
		result:          opts.Result,
		handler:         opts.Handler,
		debugHandler:    opts.DebugHandler,
		queue:           opts.Queue,
		zipper:          z,
		limit:           limit,
		defaultStatus:   status,
		disableProtocol: opts.DisableProtocol,
		limiter:         rate.NewLimiter(every, 1),
		instance:        opts.Instance,
	}
	for name := range params {
		w.paramNames = append(w.paramNames, name)
	}
	sort.Strings(w.paramNames)
	return w, nil
}

// TaskList returns the queue task list this worker serves.
func (w *Worker) TaskList() string { return w.name + w.version }

// Instance returns the configured worker instance identifier, or "".
func (w *Worker) Instance() string { return w.instance }

// SchemaDocument describes the activity: its parameters, result, and queue
// coordinates.
func (w *Worker) SchemaDocument() map[string]any {
	doc := map[string]any{
		"description": w.description,
		"params":      w.paramsSchema.Document(),
		"activity": map[string]any{
			"name":    w.name,
			"version": w.version,
		},
	}
	if w.result != nil {
		doc["result"] = w.result.Document()
	}
	return doc
}

// Run processes at most one task: poll, execute, respond. It returns the
// token of the handled task, or "" when the poll came back empty. Errors
// from the queue or codec are returned after the task, when there is one,
// has been failed.
func (w *Worker) Run(ctx context.Context) (string, error) {
	task, err := w.queue.Poll(ctx)
	if err != nil {
		return "", err
	}
	if task == nil {
		return "", nil
	}

	ctx = log.With(ctx,
		log.KV{K: "activity", V: w.name},
		log.KV{K: "version", V: w.version},
		log.KV{K: "workflow_id", V: task.WorkflowID},
		log.KV{K: "run_id", V: task.RunID},
	)

	raw, err := w.zipper.Receive(ctx, task.Input)
	if err != nil {
		ferr := w.queue.Fail(ctx, task.Token, err.Error(), "")
		return task.Token, errors.Join(err, ferr)
	}
	event, err := decodeEvent(raw)
	if err != nil {
		resp := response.New(response.StatusInvalid)
		resp.Reason = err.Error()
		return task.Token, w.respond(ctx, task, resp)
	}

	if truthy(event[KeyDisableProtocol]) || w.disableProtocol {
		return task.Token, w.runRaw(ctx, task, event)
	}

	resp := w.execute(ctx, task, event)
	return task.Token, w.respond(ctx, task, resp)
}

// RunLoop calls Run until the context is cancelled, pacing iterations with
// the poll interval and logging step failures.
func (w *Worker) RunLoop(ctx context.Context) error {
	if w.instance != "" {
		ctx = log.With(ctx, log.KV{K: "instance", V: w.instance})
	}
	log.Info(ctx, log.KV{K: "msg", V: "worker started"},
		log.KV{K: "task_list", V: w.TaskList()})
	for {
		if err := w.limiter.Wait(ctx); err != nil {
			log.Info(ctx, log.KV{K: "msg", V: "worker stopped"})
			return err
		}
		if _, err := w.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Errorf(ctx, err, "task step failed")
		}
	}
}

func decodeEvent(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("activity input is not valid JSON: %s", err)
	}
	event, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("activity input is not an object (was %T)", v)
	}
	return event, nil
}

// execute runs the protocol for one decoded event and always produces a
// response envelope.
func (w *Worker) execute(ctx context.Context, task *queue.Task, event map[string]any) *response.Response {
	if truthy(event[KeyLogInput]) {
		log.Info(ctx, log.KV{K: "msg", V: "activity input"}, log.KV{K: "input", V: event})
	}
	if logCtx, ok := event[KeyLogContext].(map[string]any); ok {
		for k, v := range logCtx {
			ctx = log.With(ctx, log.KV{K: k, V: v})
		}
		log.Info(ctx, log.KV{K: "msg", V: "activity context"})
	}
	if truthy(event[KeyReturnSchema]) {
		resp := response.New(response.StatusSuccess)
		resp.ActivityResult = w.SchemaDocument()
		resp.Instance = w.instance
		return resp
	}

	params := stripControlKeys(event)
	if records := w.validator.Validate(params); len(records) > 0 {
		resp := response.New(response.StatusInvalid)
		resp.Reason = fmt.Sprintf("%d validation error(s)", len(records))
		resp.ValidationErrors = records
		resp.Instance = w.instance
		return resp
	}

	result, notes, err := w.handle(ctx, task, event, params)
	if err == nil && w.result != nil {
		result, err = w.result.Parse(result, "Parsing result")
	}
	if err != nil {
		terr := taskerr.FromError(err, w.defaultStatus)
		resp := response.New(terr.ResponseCode())
		resp.ActivityResult = terr.Error()
		resp.Reason = terr.Error()
		resp.Notes = append(notes, terr.Notes()...)
		resp.Trace = terr.Trace()
		resp.Instance = w.instance
		return resp
	}

	resp := response.New(response.StatusSuccess)
	resp.ActivityResult = result
	resp.Notes = notes
	resp.Instance = w.instance
	return resp
}

// handle parses declared parameters and invokes the handler.
func (w *Worker) handle(ctx context.Context, task *queue.Task, event, params map[string]any) (any, []string, error) {
	args := make(map[string]any, len(w.parameters))
	for _, name := range w.paramNames {
		parsed, err := w.parameters[name].Parse(params[name], name)
		if err != nil {
			return nil, nil, taskerr.NewValidation(err.Error())
		}
		if parsed != nil {
			args[snakeCase(name)] = parsed
		}
	}

	req := &Request{
		Args:   args,
		Params: NewParams(event),
		Task:   task,
		Debug:  truthy(event[KeyDebugMode]),
	}
	handler := w.handler
	if req.Debug && w.debugHandler != nil {
		handler = w.debugHandler
	}
	return handler(ctx, req)
}

// runRaw bypasses the response envelope and size codec: the handler result
// is serialized as-is and handler errors surface from Run after failing the
// task.
func (w *Worker) runRaw(ctx context.Context, task *queue.Task, event map[string]any) error {
	result, _, err := w.handle(ctx, task, event, stripControlKeys(event))
	if err != nil {
		ferr := w.queue.Fail(ctx, task.Token, err.Error(), "")
		return errors.Join(err, ferr)
	}
	payload, err := rawPayload(result)
	if err != nil {
		ferr := w.queue.Fail(ctx, task.Token, err.Error(), "")
		return errors.Join(err, ferr)
	}
	return w.queue.Complete(ctx, task.Token, payload)
}

func rawPayload(result any) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("serialize raw result: %w", err)
	}
	return string(raw), nil
}

// respond serializes the envelope, applies the size codec and reports the
// task according to the response status.
func (w *Worker) respond(ctx context.Context, task *queue.Task, resp *response.Response) error {
	serialized, err := resp.Serialize()
	if err != nil {
		return errors.Join(err, w.queue.Fail(ctx, task.Token, err.Error(), ""))
	}
	payload, err := w.zipper.Deliver(ctx, serialized, w.limit)
	if err != nil {
		// Encoding failures (blob store down, payload unstorable) are
		// transient from the workflow's perspective: report ERROR on the
		// cancel channel so the orchestrator retries.
		log.Errorf(ctx, err, "encode response")
		fallback := response.New(response.StatusError)
		fallback.Reason = fmt.Sprintf("encode response: %s", err)
		fallback.Instance = w.instance
		serialized, serr := fallback.Serialize()
		if serr != nil {
			return errors.Join(err, serr, w.queue.Fail(ctx, task.Token, err.Error(), ""))
		}
		return w.queue.Cancel(ctx, task.Token, serialized)
	}

	log.Debugf(ctx, "responding %s", resp.Status)
	switch resp.Status.Disposition() {
	case response.Complete:
		return w.queue.Complete(ctx, task.Token, payload)
	case response.Cancel:
		return w.queue.Cancel(ctx, task.Token, payload)
	default:
		reason := resp.Reason
		if reason == "" {
			reason = string(resp.Status)
		}
		return w.queue.Fail(ctx, task.Token, reason, payload)
	}
}

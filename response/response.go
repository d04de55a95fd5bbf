// Package response defines the canonical outcome envelope an activity
// reports back to the orchestrator: a status, an optional result, notes,
// a stack trace and structured validation errors. The envelope round-trips
// losslessly through JSON for the fields that are present.
package response

import (
	"encoding/json"
	"fmt"
)

type (
	// Result wraps an activity result whose raw form needs decoding before
	// use (for example encrypted payloads). The envelope unwraps one level
	// when emitting JSON.
	Result interface {
		Result() any
	}

	// RawResult is the trivial Result holding an opaque JSON value.
	RawResult struct {
		Value any
	}

	// ValidationError is one structured record from schema validation.
	ValidationError struct {
		Cause          string            `json:"cause"`
		Context        []ValidationError `json:"context"`
		Message        string            `json:"message"`
		Path           string            `json:"path"`
		RelativePath   string            `json:"relative_path"`
		AbsolutePath   string            `json:"absolute_path"`
		Validator      string            `json:"validator"`
		ValidatorValue any               `json:"validator_value"`
	}

	// Response is the outcome envelope for one activity execution.
	Response struct {
		Status           Status
		ActivityResult   any // opaque JSON value or a Result
		Notes            []string
		Trace            []string
		Reason           string
		ValidationErrors []ValidationError

		// Cache provenance, emitted as a "cache" block when CacheKey is set.
		CacheKey        string
		CacheTime       string
		CacheExpiration string
		RunID           string
		WorkflowID      string
		SectionName     string

		// Instance identifies the worker that produced the response.
		Instance string
	}
)

// Result implements the Result interface.
func (r RawResult) Result() any { return r.Value }

// New builds a response with the given status.
func New(status Status) *Response {
	return &Response{Status: status}
}

// Result returns the activity result, unwrapping one Result level.
func (r *Response) Result() any {
	if wrapped, ok := r.ActivityResult.(Result); ok {
		return wrapped.Result()
	}
	return r.ActivityResult
}

// ToJSON projects the response into plain JSON values with the fixed shape
// {status, [result], notes, trace, reason} plus the optional blocks.
func (r *Response) ToJSON() map[string]any {
	out := map[string]any{
		"status": string(r.Status),
		"notes":  emptyIfNil(r.Notes),
		"trace":  emptyIfNil(r.Trace),
	}
	if r.ActivityResult != nil {
		out["result"] = r.Result()
	}
	if r.Reason != "" {
		out["reason"] = r.Reason
	} else {
		out["reason"] = nil
	}
	if len(r.ValidationErrors) > 0 {
		errs := make([]any, len(r.ValidationErrors))
		for i, ve := range r.ValidationErrors {
			errs[i] = ve.toJSON()
		}
		out["validation_errors"] = errs
	}
	if r.CacheKey != "" {
		out["cache"] = map[string]any{
			"key":         r.CacheKey,
			"cached":      r.CacheTime,
			"expires":     r.CacheExpiration,
			"runId":       r.RunID,
			"workflowId":  r.WorkflowID,
			"sectionName": r.SectionName,
		}
	}
	if r.Instance != "" {
		out["instance"] = r.Instance
	}
	return out
}

func (v ValidationError) toJSON() map[string]any {
	ctx := make([]any, len(v.Context))
	for i, c := range v.Context {
		ctx[i] = c.toJSON()
	}
	return map[string]any{
		"cause":           v.Cause,
		"context":         ctx,
		"message":         v.Message,
		"path":            v.Path,
		"relative_path":   v.RelativePath,
		"absolute_path":   v.AbsolutePath,
		"validator":       v.Validator,
		"validator_value": v.ValidatorValue,
	}
}

// Serialize returns the JSON encoding of ToJSON.
func (r *Response) Serialize() (string, error) {
	b, err := json.Marshal(r.ToJSON())
	if err != nil {
		return "", fmt.Errorf("serialize response: %w", err)
	}
	return string(b), nil
}

// FromJSON rebuilds a response from decoded JSON values.
func FromJSON(v any) (*Response, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("Invalid Response Format! (not an obj was %T)", v)
	}
	status, ok := obj["status"].(string)
	if !ok {
		return nil, fmt.Errorf("Invalid Response Format! (no status)")
	}

	r := New(Status(status))
	if result, present := obj["result"]; present {
		r.ActivityResult = RawResult{Value: result}
	}
	r.Notes = stringSlice(obj["notes"])
	r.Trace = stringSlice(obj["trace"])
	if reason, ok := obj["reason"].(string); ok {
		r.Reason = reason
	}
	if instance, ok := obj["instance"].(string); ok {
		r.Instance = instance
	}
	if raw, present := obj["validation_errors"]; present {
		b, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("decode validation errors: %w", err)
		}
		if err := json.Unmarshal(b, &r.ValidationErrors); err != nil {
			return nil, fmt.Errorf("decode validation errors: %w", err)
		}
	}
	if cache, ok := obj["cache"].(map[string]any); ok {
		r.CacheKey, _ = cache["key"].(string)
		r.CacheTime, _ = cache["cached"].(string)
		r.CacheExpiration, _ = cache["expires"].(string)
		r.RunID, _ = cache["runId"].(string)
		r.WorkflowID, _ = cache["workflowId"].(string)
		r.SectionName, _ = cache["sectionName"].(string)
	}
	return r, nil
}

// Deserialize parses a JSON string into a response.
func Deserialize(s string) (*Response, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("Invalid Response Format! (%w)", err)
	}
	return FromJSON(v)
}

// ParseResult decodes a result payload expected to be legal JSON; payloads
// that are not JSON are passed through as strings.
func ParseResult(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func stringSlice(v any) []string {
	switch items := v.(type) {
	case []string:
		out := make([]string, len(items))
		copy(out, items)
		return out
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}

package response

// Status classifies an activity outcome. The statuses fall into the
// orchestrator's complete, fail and cancel report channels.
type Status string

const (
	// StatusSuccess completes the task.
	StatusSuccess Status = "SUCCESS"

	// StatusInvalid fails the task: a retry without fixing the input will
	// not work.
	StatusInvalid Status = "INVALID"
	// StatusFatal fails the task: a retry with the current input will not
	// work.
	StatusFatal Status = "FATAL"

	// StatusFailed cancels the task: a retry might work.
	StatusFailed Status = "FAILED"
	// StatusError cancels the task: an error was encountered, retry might
	// work.
	StatusError Status = "ERROR"
	// StatusDefer cancels the task: the result is not yet available, retry.
	StatusDefer Status = "DEFER"
	// StatusCachedResultPending cancels the task: a cached result is being
	// produced elsewhere, retry.
	StatusCachedResultPending Status = "CACHED_RESULT_PENDING"

	// StatusUnknown is uncategorized.
	StatusUnknown Status = "UNKNOWN"
)

// Disposition is the orchestrator-visible report channel for a status.
type Disposition int

const (
	// Complete reports the task as completed.
	Complete Disposition = iota
	// Cancel reports the task as cancelled so the orchestrator retries.
	Cancel
	// Fail reports the task as failed with no retry.
	Fail
)

// Disposition maps the status to its report channel. Unknown statuses fail.
func (s Status) Disposition() Disposition {
	switch s {
	case StatusSuccess:
		return Complete
	case StatusFailed, StatusError, StatusDefer, StatusCachedResultPending:
		return Cancel
	default:
		return Fail
	}
}

// Retry reports whether the orchestrator should retry a task that ended
// with this status.
func (s Status) Retry() bool {
	return s.Disposition() == Cancel
}

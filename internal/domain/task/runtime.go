package task

import "context"

// Runtime is the execution surface handed to a running task's handler: a
// progress sink and a cooperative cancellation probe. The engine backs it
// with the task row and the worker's cancel signal; handlers never touch
// the task entity directly while it runs.
type Runtime interface {
	// TaskID identifies the task being executed
	TaskID() string

	// Progress publishes a progress tick. The engine throttles persistence,
	// so handlers may call this as often as they like.
	Progress(ctx context.Context, percentage float64, message string, processedRecords int)

	// CheckCancelled returns a CANCELLED or TIMEOUT kinded error when the
	// task should stop, nil otherwise. Handlers call this at stage
	// boundaries and between persisted chunks.
	CheckCancelled(ctx context.Context) error
}

// ExecutionResult is the uniform response every async task handler returns
// through the mediator. The owning worker folds it into the task row when
// the handler finishes, successfully or not.
type ExecutionResult struct {
	TotalRecords     int
	ProcessedRecords int
	ErrorCount       int
	SkippedCount     int

	// ErrorFiles maps artifact names to stored paths, e.g. "validation"
	// or "skipped" reports emitted by a rejected batch
	ErrorFiles map[string]string

	// ResultPath is the stored artifact a download task produced
	ResultPath string

	// Parameters are merged into the task's parameter map, e.g. the
	// sanitized values and summary an algorithm run records
	Parameters map[string]interface{}

	// FinalMessage replaces the progress message on completion
	FinalMessage string
}

// NopRuntime discards progress and never cancels. Handlers fall back to it
// when invoked outside the engine, and tests use it directly.
type NopRuntime struct {
	ID string
}

func (n NopRuntime) TaskID() string { return n.ID }

func (n NopRuntime) Progress(context.Context, float64, string, int) {}

func (n NopRuntime) CheckCancelled(context.Context) error { return nil }

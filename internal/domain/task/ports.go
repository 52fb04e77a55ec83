package task

import (
	"context"
	"io"
	"time"
)

// Repository defines persistence operations for tasks.
// Every lifecycle transition is written through here so tasks survive
// restarts; the engine's recovery pass reads back whatever was left behind.
type Repository interface {
	// Create persists a new task
	Create(ctx context.Context, t *Task) error

	// Update persists the task's current state
	Update(ctx context.Context, t *Task) error

	// FindByID retrieves a task by id
	FindByID(ctx context.Context, id string) (*Task, error)

	// FindByStatus retrieves all tasks in the given status
	FindByStatus(ctx context.Context, status Status) ([]*Task, error)

	// CountOutstanding counts PENDING and RUNNING tasks whose type belongs
	// to the given category. Used by admission control.
	CountOutstanding(ctx context.Context, category Category) (int64, error)

	// RequestCancellation sets cancellationRequested on a non-terminal task
	// with a compare-and-set update. Returns true when the flag was applied,
	// false when the task was already terminal. NOT_FOUND when absent.
	RequestCancellation(ctx context.Context, id string) (bool, error)

	// IsCancellationRequested reads the cancellation flag without loading
	// the whole row. Polled by handlers at checkpoints.
	IsCancellationRequested(ctx context.Context, id string) (bool, error)

	// UpdateProgress persists a progress tick without touching other
	// runtime fields. Used by the async progress flusher.
	UpdateProgress(ctx context.Context, id string, percentage float64, message string, processedRecords int) error

	// LatestByType retrieves the most recently created task of a type,
	// or nil when none exists. Drives the per-kind file status view.
	LatestByType(ctx context.Context, taskType Type) (*Task, error)

	// ListRecent retrieves tasks ordered by createdDate desc
	ListRecent(ctx context.Context, limit int) ([]*Task, error)

	// ListByType retrieves tasks of one type ordered by createdDate desc
	ListByType(ctx context.Context, taskType Type, limit int) ([]*Task, error)

	// CountByStatusSince counts tasks of the given category created after
	// the cutoff, grouped by status. An empty category means all categories;
	// a zero cutoff means all time.
	CountByStatusSince(ctx context.Context, category Category, since time.Time) (map[Status]int64, error)

	// DailyStats aggregates execution counts and runtimes per day and task
	// type for tasks created after the cutoff, newest day first.
	DailyStats(ctx context.Context, since time.Time) ([]DailyTypeStats, error)
}

// DailyTypeStats is one day's execution aggregate for a single task type.
type DailyTypeStats struct {
	Date            string
	TaskType        Type
	TotalTasks      int64
	SuccessfulTasks int64
	FailedTasks     int64
	AvgRuntimeSecs  float64
}

// ArtifactStore persists files produced by task execution: error reports
// from rejected batches and exported data sets. Artifacts are keyed by task
// id; Save returns the stored path, which the task records so the HTTP
// layer can stream the file back later.
type ArtifactStore interface {
	// Save writes data as a named artifact of the task
	Save(ctx context.Context, taskID, name string, data []byte) (string, error)

	// Create opens a named artifact for streaming writes
	Create(ctx context.Context, taskID, name string) (io.WriteCloser, string, error)

	// Open reads back a previously stored artifact by path
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Remove deletes all artifacts belonging to the task
	Remove(ctx context.Context, taskID string) error
}

package task

import (
	"context"
	"time"
)

// Log levels for task log entries
const (
	LogLevelInfo  = "INFO"
	LogLevelWarn  = "WARN"
	LogLevelError = "ERROR"
)

// LogEntry is one line of a task's execution log, persisted so progress
// and failures can be inspected after the fact
type LogEntry struct {
	ID        int64
	TaskID    string
	Timestamp time.Time
	Level     string
	Message   string
}

// LogRepository defines persistence operations for task logs
type LogRepository interface {
	// Append persists one log entry
	Append(ctx context.Context, entry *LogEntry) error

	// FindByTask retrieves a task's log entries ordered by timestamp,
	// newest first, up to limit (0 = no limit)
	FindByTask(ctx context.Context, taskID string, limit int) ([]*LogEntry, error)
}

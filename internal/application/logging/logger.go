package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailcore/noos-go/internal/domain/task"
)

// TaskLogger provides logging functionality for task handlers. Handlers
// reach it through the context so the pipeline and algorithm code stay
// free of logging plumbing.
type TaskLogger interface {
	Log(level, message string)
	Logf(level, format string, args ...interface{})
}

// Context keys for passing the logger through context
type contextKey int

const loggerKey contextKey = iota

// WithLogger adds a task logger to the context
func WithLogger(ctx context.Context, logger TaskLogger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the task logger from context, or returns a no-op
// logger when none was installed
func FromContext(ctx context.Context) TaskLogger {
	if logger, ok := ctx.Value(loggerKey).(TaskLogger); ok {
		return logger
	}
	return &noOpLogger{}
}

// noOpLogger is the fallback when no logger is in context
type noOpLogger struct{}

func (l *noOpLogger) Log(level, message string)                      {}
func (l *noOpLogger) Logf(level, format string, args ...interface{}) {}

// PersistingLogger writes task log entries to the log repository and
// mirrors them through the process logger. Database writes happen on a
// fire-and-forget goroutine so logging never blocks a worker.
type PersistingLogger struct {
	taskID string
	repo   task.LogRepository
	logger zerolog.Logger
}

// NewPersistingLogger creates a logger bound to one task
func NewPersistingLogger(taskID string, repo task.LogRepository, logger zerolog.Logger) *PersistingLogger {
	return &PersistingLogger{
		taskID: taskID,
		repo:   repo,
		logger: logger.With().Str("task_id", taskID).Logger(),
	}
}

// Log records one entry
func (l *PersistingLogger) Log(level, message string) {
	switch level {
	case task.LogLevelError:
		l.logger.Error().Msg(message)
	case task.LogLevelWarn:
		l.logger.Warn().Msg(message)
	default:
		l.logger.Info().Msg(message)
	}

	entry := &task.LogEntry{
		TaskID:    l.taskID,
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := l.repo.Append(ctx, entry); err != nil {
			l.logger.Warn().Err(err).Msg("failed to persist task log entry")
		}
	}()
}

// Logf records one formatted entry
func (l *PersistingLogger) Logf(level, format string, args ...interface{}) {
	l.Log(level, fmt.Sprintf(format, args...))
}

package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
)

// TaskLogRepositoryGORM persists task log entries. Identical messages for
// the same task are deduplicated within a time window so a handler looping
// over a hot checkpoint cannot flood the table.
type TaskLogRepositoryGORM struct {
	db    *gorm.DB
	clock shared.Clock

	dedupCache   map[string]time.Time // key: taskID|message, value: last logged time
	dedupMu      sync.Mutex
	dedupWindow  time.Duration
	dedupMaxSize int
}

// NewTaskLogRepository creates a new task log repository.
// If clock is nil, uses RealClock.
func NewTaskLogRepository(db *gorm.DB, clock shared.Clock) *TaskLogRepositoryGORM {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &TaskLogRepositoryGORM{
		db:           db,
		clock:        clock,
		dedupCache:   make(map[string]time.Time),
		dedupWindow:  60 * time.Second,
		dedupMaxSize: 10000,
	}
}

// Append persists one log entry with time-windowed deduplication
func (r *TaskLogRepositoryGORM) Append(ctx context.Context, entry *task.LogEntry) error {
	now := r.clock.Now()
	cacheKey := entry.TaskID + "|" + entry.Message

	r.dedupMu.Lock()
	if lastLogged, exists := r.dedupCache[cacheKey]; exists {
		if now.Sub(lastLogged) < r.dedupWindow {
			r.dedupMu.Unlock()
			return nil
		}
	}
	if len(r.dedupCache) >= r.dedupMaxSize {
		r.cleanupDedupCache()
	}
	r.dedupCache[cacheKey] = now
	r.dedupMu.Unlock()

	timestamp := entry.Timestamp
	if timestamp.IsZero() {
		timestamp = now
	}
	level := entry.Level
	if level == "" {
		level = task.LogLevelInfo
	}

	model := &TaskLogModel{
		TaskID:    entry.TaskID,
		Timestamp: timestamp,
		Level:     level,
		Message:   entry.Message,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to insert task log entry: %w", err)
	}
	return nil
}

// cleanupDedupCache removes entries older than the deduplication window.
// Must be called while holding dedupMu.
func (r *TaskLogRepositoryGORM) cleanupDedupCache() {
	cutoff := r.clock.Now().Add(-r.dedupWindow)
	for key, timestamp := range r.dedupCache {
		if timestamp.Before(cutoff) {
			delete(r.dedupCache, key)
		}
	}
}

// FindByTask retrieves a task's log entries, newest first
func (r *TaskLogRepositoryGORM) FindByTask(ctx context.Context, taskID string, limit int) ([]*task.LogEntry, error) {
	var models []TaskLogModel

	query := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find task logs: %w", err)
	}

	entries := make([]*task.LogEntry, len(models))
	for i, model := range models {
		entries[i] = &task.LogEntry{
			ID:        model.ID,
			TaskID:    model.TaskID,
			Timestamp: model.Timestamp,
			Level:     model.Level,
			Message:   model.Message,
		}
	}
	return entries, nil
}

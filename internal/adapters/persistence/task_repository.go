package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
)

// TaskRepositoryGORM implements task persistence using GORM
type TaskRepositoryGORM struct {
	db *gorm.DB
}

// NewTaskRepository creates a new GORM-based task repository
func NewTaskRepository(db *gorm.DB) *TaskRepositoryGORM {
	return &TaskRepositoryGORM{db: db}
}

// Create persists a new task
func (r *TaskRepositoryGORM) Create(ctx context.Context, t *task.Task) error {
	model, err := taskToModel(t)
	if err != nil {
		return fmt.Errorf("failed to convert task to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// Update persists the task's current state. The cancellation flag is
// deliberately left out: it is only ever set through RequestCancellation,
// and a full update from a stale in-memory entity must not clear it.
func (r *TaskRepositoryGORM) Update(ctx context.Context, t *task.Task) error {
	model, err := taskToModel(t)
	if err != nil {
		return fmt.Errorf("failed to convert task to model: %w", err)
	}

	result := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"status":              model.Status,
			"total_records":       model.TotalRecords,
			"processed_records":   model.ProcessedRecords,
			"error_count":         model.ErrorCount,
			"skipped_count":       model.SkippedCount,
			"progress_percentage": model.ProgressPercentage,
			"progress_message":    model.ProgressMessage,
			"parameters":          model.Parameters,
			"result_url":          model.ResultURL,
			"error_files":         model.ErrorFiles,
			"error_message":       model.ErrorMessage,
			"runtime_seconds":     model.RuntimeSeconds,
			"updated_at":          model.UpdatedAt,
			"start_time":          model.StartTime,
			"end_time":            model.EndTime,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("task", t.ID())
	}
	return nil
}

// FindByID retrieves a task by id
func (r *TaskRepositoryGORM) FindByID(ctx context.Context, id string) (*task.Task, error) {
	var model TaskModel
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&model)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, shared.NewNotFoundError("task", id)
		}
		return nil, fmt.Errorf("failed to find task: %w", result.Error)
	}
	return modelToTask(&model)
}

// FindByStatus retrieves all tasks in the given status, oldest first so
// recovery re-enqueues in submission order
func (r *TaskRepositoryGORM) FindByStatus(ctx context.Context, status task.Status) ([]*task.Task, error) {
	var models []TaskModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("created_date ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks by status: %w", err)
	}
	return modelsToTasks(models)
}

// CountOutstanding counts PENDING and RUNNING tasks in the category
func (r *TaskRepositoryGORM) CountOutstanding(ctx context.Context, category task.Category) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("task_type IN ?", typeNames(category)).
		Where("status IN ?", []string{string(task.StatusPending), string(task.StatusRunning)}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count outstanding tasks: %w", err)
	}
	return count, nil
}

// RequestCancellation sets the cancellation flag with a compare-and-set on
// the non-terminal statuses. Returns false when the task was already
// terminal.
func (r *TaskRepositoryGORM) RequestCancellation(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("id = ? AND status IN ?", id,
			[]string{string(task.StatusPending), string(task.StatusRunning)}).
		Updates(map[string]interface{}{
			"cancellation_requested": true,
			"updated_at":             time.Now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to request cancellation: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	// No row matched: either terminal or missing
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check task existence: %w", err)
	}
	if count == 0 {
		return false, shared.NewNotFoundError("task", id)
	}
	return false, nil
}

// IsCancellationRequested reads the cancellation flag without loading the
// whole row
func (r *TaskRepositoryGORM) IsCancellationRequested(ctx context.Context, id string) (bool, error) {
	var model TaskModel
	result := r.db.WithContext(ctx).
		Select("cancellation_requested").
		Where("id = ?", id).
		First(&model)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return false, shared.NewNotFoundError("task", id)
		}
		return false, fmt.Errorf("failed to read cancellation flag: %w", result.Error)
	}
	return model.CancellationRequested, nil
}

// UpdateProgress persists a progress tick. The status guard keeps late
// asynchronous flushes from touching a row that already went terminal.
func (r *TaskRepositoryGORM) UpdateProgress(ctx context.Context, id string, percentage float64, message string, processedRecords int) error {
	result := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Where("id = ? AND status = ?", id, string(task.StatusRunning)).
		Updates(map[string]interface{}{
			"progress_percentage": percentage,
			"progress_message":    message,
			"processed_records":   processedRecords,
			"updated_at":          time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update progress: %w", result.Error)
	}
	return nil
}

// LatestByType retrieves the most recently created task of a type, or nil
// when none exists
func (r *TaskRepositoryGORM) LatestByType(ctx context.Context, taskType task.Type) (*task.Task, error) {
	var model TaskModel
	result := r.db.WithContext(ctx).
		Where("task_type = ?", string(taskType)).
		Order("created_date DESC").
		First(&model)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest task: %w", result.Error)
	}
	return modelToTask(&model)
}

// ListRecent retrieves tasks ordered by createdDate desc
func (r *TaskRepositoryGORM) ListRecent(ctx context.Context, limit int) ([]*task.Task, error) {
	var models []TaskModel
	query := r.db.WithContext(ctx).Order("created_date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list recent tasks: %w", err)
	}
	return modelsToTasks(models)
}

// ListByType retrieves tasks of one type ordered by createdDate desc
func (r *TaskRepositoryGORM) ListByType(ctx context.Context, taskType task.Type, limit int) ([]*task.Task, error) {
	var models []TaskModel
	query := r.db.WithContext(ctx).
		Where("task_type = ?", string(taskType)).
		Order("created_date DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks by type: %w", err)
	}
	return modelsToTasks(models)
}

// CountByStatusSince counts tasks per status, optionally narrowed to one
// category and a creation cutoff
func (r *TaskRepositoryGORM) CountByStatusSince(ctx context.Context, category task.Category, since time.Time) (map[task.Status]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	query := r.db.WithContext(ctx).
		Model(&TaskModel{}).
		Select("status, COUNT(*) AS count").
		Group("status")
	if category != "" {
		query = query.Where("task_type IN ?", typeNames(category))
	}
	if !since.IsZero() {
		query = query.Where("created_date >= ?", since)
	}

	var rows []statusCount
	if err := query.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}

	counts := make(map[task.Status]int64, len(rows))
	for _, row := range rows {
		counts[task.Status(row.Status)] = row.Count
	}
	return counts, nil
}

// DailyStats aggregates execution counts and runtimes per day and task
// type. runtime_seconds is computed in Go at the terminal write, so the
// aggregate needs no dialect-specific date arithmetic.
func (r *TaskRepositoryGORM) DailyStats(ctx context.Context, since time.Time) ([]task.DailyTypeStats, error) {
	query := `
		SELECT
			date(created_date) AS date,
			task_type,
			COUNT(*) AS total_tasks,
			SUM(CASE WHEN status = 'COMPLETED' THEN 1 ELSE 0 END) AS successful_tasks,
			SUM(CASE WHEN status = 'FAILED' THEN 1 ELSE 0 END) AS failed_tasks,
			COALESCE(AVG(CASE WHEN runtime_seconds > 0 THEN runtime_seconds END), 0) AS avg_runtime_secs
		FROM tasks
		WHERE created_date >= ?
		GROUP BY date(created_date), task_type
		ORDER BY date DESC, task_type ASC
	`

	type dailyRow struct {
		Date            string
		TaskType        string
		TotalTasks      int64
		SuccessfulTasks int64
		FailedTasks     int64
		AvgRuntimeSecs  float64
	}

	var rows []dailyRow
	if err := r.db.WithContext(ctx).Raw(query, since).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate daily task stats: %w", err)
	}

	stats := make([]task.DailyTypeStats, len(rows))
	for i, row := range rows {
		stats[i] = task.DailyTypeStats{
			Date:            row.Date,
			TaskType:        task.Type(row.TaskType),
			TotalTasks:      row.TotalTasks,
			SuccessfulTasks: row.SuccessfulTasks,
			FailedTasks:     row.FailedTasks,
			AvgRuntimeSecs:  row.AvgRuntimeSecs,
		}
	}
	return stats, nil
}

// typeNames returns the task type strings belonging to a category
func typeNames(category task.Category) []string {
	var names []string
	for _, t := range task.AllTypes() {
		if t.Category() == category {
			names = append(names, string(t))
		}
	}
	return names
}

// taskToModel converts the domain entity to its database model
func taskToModel(t *task.Task) (*TaskModel, error) {
	paramsJSON, err := json.Marshal(t.Parameters())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}
	errorFilesJSON, err := json.Marshal(t.ErrorFiles())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal error files: %w", err)
	}

	return &TaskModel{
		ID:                    t.ID(),
		TaskType:              string(t.Type()),
		FileName:              t.FileName(),
		UserID:                t.UserID(),
		Status:                string(t.Status()),
		TotalRecords:          t.TotalRecords(),
		ProcessedRecords:      t.ProcessedRecords(),
		ErrorCount:            t.ErrorCount(),
		SkippedCount:          t.SkippedCount(),
		ProgressPercentage:    t.ProgressPercentage(),
		ProgressMessage:       t.ProgressMessage(),
		Parameters:            string(paramsJSON),
		ResultURL:             t.ResultURL(),
		ErrorFiles:            string(errorFilesJSON),
		CancellationRequested: t.CancellationRequested(),
		ErrorMessage:          t.ErrorMessage(),
		RuntimeSeconds:        runtimeSeconds(t),
		CreatedDate:           t.CreatedDate(),
		UpdatedAt:             t.UpdatedAt(),
		StartTime:             t.StartTime(),
		EndTime:               t.EndTime(),
	}, nil
}

// runtimeSeconds is zero until the task reaches a terminal state
func runtimeSeconds(t *task.Task) float64 {
	if t.StartTime() == nil || t.EndTime() == nil {
		return 0
	}
	return t.EndTime().Sub(*t.StartTime()).Seconds()
}

// modelToTask rebuilds the domain entity from its database model
func modelToTask(model *TaskModel) (*task.Task, error) {
	var parameters map[string]interface{}
	if model.Parameters != "" {
		if err := json.Unmarshal([]byte(model.Parameters), &parameters); err != nil {
			return nil, fmt.Errorf("invalid parameters JSON for task %s: %w", model.ID, err)
		}
	}
	var errorFiles map[string]string
	if model.ErrorFiles != "" {
		if err := json.Unmarshal([]byte(model.ErrorFiles), &errorFiles); err != nil {
			return nil, fmt.Errorf("invalid error files JSON for task %s: %w", model.ID, err)
		}
	}

	return task.Reconstruct(
		model.ID,
		task.Type(model.TaskType),
		model.FileName,
		model.UserID,
		task.Status(model.Status),
		model.TotalRecords,
		model.ProcessedRecords,
		model.ErrorCount,
		model.SkippedCount,
		model.ProgressPercentage,
		model.ProgressMessage,
		parameters,
		model.ResultURL,
		errorFiles,
		model.CancellationRequested,
		model.ErrorMessage,
		model.CreatedDate,
		model.UpdatedAt,
		model.StartTime,
		model.EndTime,
		nil,
	), nil
}

func modelsToTasks(models []TaskModel) ([]*task.Task, error) {
	tasks := make([]*task.Task, 0, len(models))
	for i := range models {
		t, err := modelToTask(&models[i])
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

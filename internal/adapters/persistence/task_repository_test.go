package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/noos-go/internal/adapters/persistence"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/test/helpers"
)

func newRepoClock() *shared.MockClock {
	return shared.NewMockClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
}

func TestTaskRepository_CreateAndFindByID(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)
	clock := newRepoClock()

	tk := task.New("file-upload-styles-11111111", task.TypeUploadStyles, "styles.tsv", "ops",
		map[string]interface{}{"stagedFile": "/tmp/styles.tsv"}, clock)

	// Act
	err := repo.Create(context.Background(), tk)

	// Assert
	require.NoError(t, err)

	found, err := repo.FindByID(context.Background(), tk.ID())
	require.NoError(t, err)
	assert.Equal(t, tk.ID(), found.ID())
	assert.Equal(t, task.TypeUploadStyles, found.Type())
	assert.Equal(t, task.StatusPending, found.Status())
	assert.Equal(t, "styles.tsv", found.FileName())
	assert.Equal(t, "ops", found.UserID())

	staged, ok := found.GetParameter("stagedFile")
	require.True(t, ok)
	assert.Equal(t, "/tmp/styles.tsv", staged)
}

func TestTaskRepository_FindByIDNotFound(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)

	// Act
	_, err := repo.FindByID(context.Background(), "missing")

	// Assert
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestTaskRepository_UpdatePersistsTerminalState(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)
	clock := newRepoClock()

	tk := task.New("algorithm-run-22222222", task.TypeAlgorithmRun, "", "system", nil, clock)
	require.NoError(t, repo.Create(context.Background(), tk))

	require.NoError(t, tk.Start())
	clock.Advance(90 * time.Second)
	tk.SetTotalRecords(1000)
	tk.RecordOutcome(1000, 0, 0)
	require.NoError(t, tk.Complete())

	// Act
	err := repo.Update(context.Background(), tk)

	// Assert
	require.NoError(t, err)
	found, err := repo.FindByID(context.Background(), tk.ID())
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, found.Status())
	assert.Equal(t, 1000, found.TotalRecords())
	assert.Equal(t, 1000, found.ProcessedRecords())
	assert.Equal(t, 100.0, found.ProgressPercentage())
	require.NotNil(t, found.StartTime())
	require.NotNil(t, found.EndTime())
	assert.Equal(t, 90*time.Second, found.EndTime().Sub(*found.StartTime()))
}

func TestTaskRepository_UpdateMissingTask(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)
	tk := task.New("never-created", task.TypeUploadSales, "sales.tsv", "", nil, newRepoClock())

	// Act
	err := repo.Update(context.Background(), tk)

	// Assert
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestTaskRepository_FindByStatusOldestFirst(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)
	clock := newRepoClock()

	first := task.New("a-1", task.TypeUploadStyles, "a.tsv", "", nil, clock)
	require.NoError(t, repo.Create(context.Background(), first))
	clock.Advance(time.Minute)
	second := task.New("a-2", task.TypeUploadStores, "b.tsv", "", nil, clock)
	require.NoError(t, repo.Create(context.Background(), second))

	// Act
	pending, err := repo.FindByStatus(context.Background(), task.StatusPending)

	// Assert
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a-1", pending[0].ID())
	assert.Equal(t, "a-2", pending[1].ID())
}

func TestTaskRepository_CountOutstandingPerCategory(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)
	clock := newRepoClock()
	ctx := context.Background()

	pendingUpload := task.New("u-1", task.TypeUploadStyles, "a.tsv", "", nil, clock)
	require.NoError(t, repo.Create(ctx, pendingUpload))

	runningUpload := task.New("u-2", task.TypeUploadSales, "b.tsv", "", nil, clock)
	require.NoError(t, runningUpload.Start())
	require.NoError(t, repo.Create(ctx, runningUpload))

	doneUpload := task.New("u-3", task.TypeUploadSkus, "c.tsv", "", nil, clock)
	require.NoError(t, doneUpload.Start())
	require.NoError(t, doneUpload.Complete())
	require.NoError(t, repo.Create(ctx, doneUpload))

	compute := task.New("r-1", task.TypeAlgorithmRun, "", "", nil, clock)
	require.NoError(t, repo.Create(ctx, compute))

	// Act
	uploads, err := repo.CountOutstanding(ctx, task.CategoryUpload)
	require.NoError(t, err)
	computes, err := repo.CountOutstanding(ctx, task.CategoryCompute)
	require.NoError(t, err)
	downloads, err := repo.CountOutstanding(ctx, task.CategoryDownload)
	require.NoError(t, err)

	// Assert - terminal uploads do not count against admission
	assert.Equal(t, int64(2), uploads)
	assert.Equal(t, int64(1), computes)
	assert.Equal(t, int64(0), downloads)
}

func TestTaskRepository_RequestCancellation(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)
	ctx := context.Background()

	pending := task.New("c-1", task.TypeUploadStyles, "a.tsv", "", nil, newRepoClock())
	require.NoError(t, repo.Create(ctx, pending))

	// Act - non-terminal task gets the flag
	applied, err := repo.RequestCancellation(ctx, "c-1")

	// Assert
	require.NoError(t, err)
	assert.True(t, applied)

	flagged, err := repo.IsCancellationRequested(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, flagged)

	// Act - idempotent on a still-pending task
	applied, err = repo.RequestCancellation(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, applied)
}

func TestTaskRepository_RequestCancellationTerminal(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)
	ctx := context.Background()

	done := task.New("c-2", task.TypeUploadStyles, "a.tsv", "", nil, newRepoClock())
	require.NoError(t, done.Start())
	require.NoError(t, done.Complete())
	require.NoError(t, repo.Create(ctx, done))

	// Act
	applied, err := repo.RequestCancellation(ctx, "c-2")

	// Assert - terminal rows are left untouched
	require.NoError(t, err)
	assert.False(t, applied)

	flagged, err := repo.IsCancellationRequested(ctx, "c-2")
	require.NoError(t, err)
	assert.False(t, flagged)
}

func TestTaskRepository_RequestCancellationMissing(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)

	// Act
	_, err := repo.RequestCancellation(context.Background(), "missing")

	// Assert
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestTaskRepository_UpdateDoesNotClearCancellationFlag(t *testing.T) {
	// Arrange - the flag is set through RequestCancellation while a stale
	// in-memory entity without the flag gets persisted afterwards
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)
	ctx := context.Background()

	tk := task.New("c-3", task.TypeUploadStyles, "a.tsv", "", nil, newRepoClock())
	require.NoError(t, repo.Create(ctx, tk))

	applied, err := repo.RequestCancellation(ctx, "c-3")
	require.NoError(t, err)
	require.True(t, applied)

	require.NoError(t, tk.Start())

	// Act
	require.NoError(t, repo.Update(ctx, tk))

	// Assert
	flagged, err := repo.IsCancellationRequested(ctx, "c-3")
	require.NoError(t, err)
	assert.True(t, flagged)
}

func TestTaskRepository_UpdateProgressOnlyWhileRunning(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)
	ctx := context.Background()

	tk := task.New("p-1", task.TypeUploadSales, "sales.tsv", "", nil, newRepoClock())
	require.NoError(t, repo.Create(ctx, tk))

	// Act - still pending, the tick must not land
	require.NoError(t, repo.UpdateProgress(ctx, "p-1", 40, "loading", 400))

	found, err := repo.FindByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, found.ProgressPercentage())

	// Act - running, the tick lands
	require.NoError(t, tk.Start())
	require.NoError(t, repo.Update(ctx, tk))
	require.NoError(t, repo.UpdateProgress(ctx, "p-1", 40, "loading", 400))

	// Assert
	found, err = repo.FindByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 40.0, found.ProgressPercentage())
	assert.Equal(t, "loading", found.ProgressMessage())
	assert.Equal(t, 400, found.ProcessedRecords())
}

func TestTaskRepository_LatestByType(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)
	clock := newRepoClock()
	ctx := context.Background()

	older := task.New("l-1", task.TypeUploadStyles, "old.tsv", "", nil, clock)
	require.NoError(t, repo.Create(ctx, older))
	clock.Advance(time.Hour)
	newer := task.New("l-2", task.TypeUploadStyles, "new.tsv", "", nil, clock)
	require.NoError(t, repo.Create(ctx, newer))

	// Act
	latest, err := repo.LatestByType(ctx, task.TypeUploadStyles)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "l-2", latest.ID())

	// Act - no task of this type yet
	none, err := repo.LatestByType(ctx, task.TypeDownloadNoos)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestTaskRepository_ListRecentAndByType(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)
	clock := newRepoClock()
	ctx := context.Background()

	for i, id := range []string{"r-1", "r-2", "r-3"} {
		taskType := task.TypeUploadStyles
		if i == 1 {
			taskType = task.TypeAlgorithmRun
		}
		tk := task.New(id, taskType, "", "", nil, clock)
		require.NoError(t, repo.Create(ctx, tk))
		clock.Advance(time.Minute)
	}

	// Act
	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	uploads, err := repo.ListByType(ctx, task.TypeUploadStyles, 10)
	require.NoError(t, err)

	// Assert - newest first, limit honored
	require.Len(t, recent, 2)
	assert.Equal(t, "r-3", recent[0].ID())
	assert.Equal(t, "r-2", recent[1].ID())

	require.Len(t, uploads, 2)
	assert.Equal(t, "r-3", uploads[0].ID())
	assert.Equal(t, "r-1", uploads[1].ID())
}

func TestTaskRepository_CountByStatusSince(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)
	clock := newRepoClock()
	ctx := context.Background()

	old := task.New("s-1", task.TypeUploadStyles, "", "", nil, clock)
	require.NoError(t, old.Start())
	require.NoError(t, old.Complete())
	require.NoError(t, repo.Create(ctx, old))

	clock.Advance(10 * 24 * time.Hour)
	cutoff := clock.Now().Add(-time.Hour)

	fresh := task.New("s-2", task.TypeUploadSales, "", "", nil, clock)
	require.NoError(t, fresh.Start())
	require.NoError(t, fresh.Fail(shared.NewValidationError("bad batch")))
	require.NoError(t, repo.Create(ctx, fresh))

	download := task.New("s-3", task.TypeDownloadStyles, "", "", nil, clock)
	require.NoError(t, repo.Create(ctx, download))

	// Act - uploads within the window
	counts, err := repo.CountByStatusSince(ctx, task.CategoryUpload, cutoff)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, int64(1), counts[task.StatusFailed])
	assert.Zero(t, counts[task.StatusCompleted])

	// Act - all categories, all time
	all, err := repo.CountByStatusSince(ctx, "", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), all[task.StatusCompleted])
	assert.Equal(t, int64(1), all[task.StatusFailed])
	assert.Equal(t, int64(1), all[task.StatusPending])
}

func TestTaskRepository_DailyStats(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewTaskRepository(db)
	clock := newRepoClock()
	ctx := context.Background()

	succeeded := task.New("d-1", task.TypeUploadStyles, "", "", nil, clock)
	require.NoError(t, succeeded.Start())
	clock.Advance(60 * time.Second)
	require.NoError(t, succeeded.Complete())
	require.NoError(t, repo.Create(ctx, succeeded))

	failed := task.New("d-2", task.TypeUploadStyles, "", "", nil, clock)
	require.NoError(t, failed.Start())
	clock.Advance(120 * time.Second)
	require.NoError(t, failed.Fail(shared.NewValidationError("rejected")))
	require.NoError(t, repo.Create(ctx, failed))

	// Act
	stats, err := repo.DailyStats(ctx, time.Time{})

	// Assert - one aggregate row for the single day and type
	require.NoError(t, err)
	require.Len(t, stats, 1)
	row := stats[0]
	assert.Equal(t, task.TypeUploadStyles, row.TaskType)
	assert.Equal(t, int64(2), row.TotalTasks)
	assert.Equal(t, int64(1), row.SuccessfulTasks)
	assert.Equal(t, int64(1), row.FailedTasks)
	assert.InDelta(t, 90.0, row.AvgRuntimeSecs, 0.01)
}

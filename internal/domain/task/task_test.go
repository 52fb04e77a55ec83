package task_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
)

func newMockClock() *shared.MockClock {
	return shared.NewMockClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
}

func TestTask_LifecycleTransitions(t *testing.T) {
	// Arrange
	clock := newMockClock()
	tk := task.New("t-1", task.TypeUploadStyles, "styles.tsv", "system", nil, clock)
	assert.Equal(t, task.StatusPending, tk.Status())

	// Act - start
	require.NoError(t, tk.Start())

	// Assert
	assert.Equal(t, task.StatusRunning, tk.Status())
	require.NotNil(t, tk.StartTime())

	// Act - complete
	clock.Advance(2 * time.Minute)
	require.NoError(t, tk.Complete())

	// Assert
	assert.Equal(t, task.StatusCompleted, tk.Status())
	assert.Equal(t, 100.0, tk.ProgressPercentage())
	require.NotNil(t, tk.EndTime())
	assert.Equal(t, 2*time.Minute, tk.RuntimeDuration())
}

func TestTask_CannotStartTwice(t *testing.T) {
	// Arrange
	tk := task.New("t-1", task.TypeUploadStyles, "styles.tsv", "system", nil, newMockClock())
	require.NoError(t, tk.Start())

	// Act
	err := tk.Start()

	// Assert
	assert.Error(t, err)
}

func TestTask_FailCapturesKind(t *testing.T) {
	// Arrange
	tk := task.New("t-1", task.TypeAlgorithmRun, "", "system", nil, newMockClock())
	require.NoError(t, tk.Start())

	// Act
	require.NoError(t, tk.Fail(shared.NewNoDataError("NO_DATA: no sales in analysis window")))

	// Assert
	assert.Equal(t, task.StatusFailed, tk.Status())
	assert.Equal(t, shared.KindNoData, tk.FailureKind())
	assert.Contains(t, tk.ErrorMessage(), "NO_DATA")
}

func TestTask_ErrorMessageBounded(t *testing.T) {
	// Arrange
	tk := task.New("t-1", task.TypeUploadSales, "sales.tsv", "system", nil, newMockClock())
	require.NoError(t, tk.Start())

	// Act
	require.NoError(t, tk.Fail(shared.NewValidationError(strings.Repeat("x", 2000))))

	// Assert
	assert.Len(t, tk.ErrorMessage(), 500)
}

func TestTask_ProgressIsMonotonic(t *testing.T) {
	// Arrange
	tk := task.New("t-1", task.TypeUploadSales, "sales.tsv", "system", nil, newMockClock())
	require.NoError(t, tk.Start())

	// Act
	tk.MarkProgress(40, "validating")
	tk.MarkProgress(20, "stale update")
	tk.MarkProgress(60, "loading")
	tk.MarkProgress(150, "overflow")

	// Assert
	assert.Equal(t, 100.0, tk.ProgressPercentage())
}

func TestTask_ProgressClampedNotRegressed(t *testing.T) {
	// Arrange
	tk := task.New("t-1", task.TypeUploadSales, "sales.tsv", "system", nil, newMockClock())
	require.NoError(t, tk.Start())

	// Act
	tk.MarkProgress(40, "validating")
	tk.MarkProgress(-10, "bogus")

	// Assert
	assert.Equal(t, 40.0, tk.ProgressPercentage())
	assert.Equal(t, "bogus", tk.ProgressMessage())
}

func TestTask_CancelFromRunning(t *testing.T) {
	// Arrange
	tk := task.New("t-1", task.TypeUploadSales, "sales.tsv", "system", nil, newMockClock())
	require.NoError(t, tk.Start())
	tk.RequestCancel()
	assert.True(t, tk.CancellationRequested())

	// Act
	require.NoError(t, tk.Cancel())

	// Assert
	assert.Equal(t, task.StatusCancelled, tk.Status())
	require.NotNil(t, tk.EndTime())
}

func TestTask_RequestCancelIgnoredOnTerminal(t *testing.T) {
	// Arrange
	tk := task.New("t-1", task.TypeUploadSales, "sales.tsv", "system", nil, newMockClock())
	require.NoError(t, tk.Start())
	require.NoError(t, tk.Complete())

	// Act
	tk.RequestCancel()

	// Assert
	assert.False(t, tk.CancellationRequested())
}

func TestTask_CategoryDerivation(t *testing.T) {
	assert.Equal(t, task.CategoryUpload, task.TypeUploadSales.Category())
	assert.Equal(t, task.CategoryDownload, task.TypeDownloadNoos.Category())
	assert.Equal(t, task.CategoryCompute, task.TypeAlgorithmRun.Category())
}

func TestTask_Reconstruct(t *testing.T) {
	// Arrange
	created := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	started := created.Add(time.Second)
	ended := created.Add(time.Minute)

	// Act
	tk := task.Reconstruct(
		"t-9", task.TypeUploadSales, "sales.tsv", "system",
		task.StatusFailed,
		100, 40, 3, 2,
		55.5, "loading rows",
		map[string]interface{}{"staged": "/tmp/x.tsv"},
		"", map[string]string{"validation_errors.tsv": "/tmp/a.tsv"},
		true,
		"3 validation errors",
		created, ended, &started, &ended,
		nil,
	)

	// Assert
	assert.Equal(t, task.StatusFailed, tk.Status())
	assert.Equal(t, 55.5, tk.ProgressPercentage())
	assert.Equal(t, 3, tk.ErrorCount())
	assert.Equal(t, 2, tk.SkippedCount())
	assert.True(t, tk.CancellationRequested())
	assert.Equal(t, "3 validation errors", tk.ErrorMessage())
	assert.True(t, tk.IsFinished())
}

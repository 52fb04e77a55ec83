package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/adapters/persistence"
	"github.com/retailcore/noos-go/internal/application/reports"
	"github.com/retailcore/noos-go/internal/domain/catalog"
	"github.com/retailcore/noos-go/internal/domain/sales"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/test/helpers"
)

var reportsNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newReportsHandler(t *testing.T) (*reports.Handler, *gorm.DB, *shared.MockClock) {
	t.Helper()
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(reportsNow)
	handler := reports.NewHandler(
		persistence.NewStyleRepository(db),
		persistence.NewStoreRepository(db),
		persistence.NewSKURepository(db),
		persistence.NewSaleRepository(db),
		persistence.NewTaskRepository(db),
		clock,
	)
	return handler, db, clock
}

func seedMasterData(t *testing.T, db *gorm.DB, withSales bool) {
	t.Helper()
	ctx := context.Background()
	writer := persistence.NewBatchWriter(db)

	require.NoError(t, writer.ReplaceStyles(ctx, []*catalog.Style{
		catalog.NewStyle("ST-100", "NOVA", "APPAREL", "TEES", 799.5, "F"),
	}, 0, nil))
	require.NoError(t, writer.ReplaceStores(ctx, []*catalog.Store{
		catalog.NewStore("DEL-01", "DELHI"),
	}, 0, nil))

	styleIDs, err := persistence.NewStyleRepository(db).CodeToID(ctx)
	require.NoError(t, err)
	require.NoError(t, writer.ReplaceSkus(ctx, []*catalog.SKU{
		catalog.NewSKU("SKU-A", styleIDs["ST-100"], "ST-100", "M"),
	}, 0, nil))

	if !withSales {
		return
	}
	skuIDs, err := persistence.NewSKURepository(db).CodeToID(ctx)
	require.NoError(t, err)
	storeIDs, err := persistence.NewStoreRepository(db).BranchToID(ctx)
	require.NoError(t, err)
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, writer.ReplaceSales(ctx, []*sales.Sale{
		sales.NewSale(day, skuIDs["SKU-A"], "SKU-A", storeIDs["DEL-01"], "DEL-01", 2, 0.1, 1438.2),
		sales.NewSale(day.AddDate(0, 0, 1), skuIDs["SKU-A"], "SKU-A", storeIDs["DEL-01"], "DEL-01", 1, 0, 799.5),
		sales.NewSale(day.AddDate(0, 0, 2), skuIDs["SKU-A"], "SKU-A", storeIDs["DEL-01"], "DEL-01", 3, 0.2, 2158.5),
	}, 0, nil))
}

// seedTask persists a task and, when drive is given, its post-transition
// state in a second write
func seedTask(t *testing.T, db *gorm.DB, id string, taskType task.Type, clock shared.Clock, drive func(*task.Task)) *task.Task {
	t.Helper()
	repo := persistence.NewTaskRepository(db)
	tk := task.New(id, taskType, "upload.tsv", "tester", nil, clock)
	require.NoError(t, repo.Create(context.Background(), tk))
	if drive != nil {
		drive(tk)
		require.NoError(t, repo.Update(context.Background(), tk))
	}
	return tk
}

func TestReports_DashboardOnEmptySystem(t *testing.T) {
	// Arrange
	handler, _, _ := newReportsHandler(t)

	// Act
	resp, err := handler.Handle(context.Background(), &reports.GetDashboardQuery{})

	// Assert
	require.NoError(t, err)
	dash := resp.(*reports.DashboardResponse)
	assert.Zero(t, dash.TotalSalesRecords)
	assert.Equal(t, "No data available", dash.SalesDataStatus)
	assert.Equal(t, "Setup required", dash.MasterDataStatus)
	assert.Equal(t, "System idle", dash.ProcessingStatus)
	assert.Equal(t, "Inactive", dash.RecentActivityStatus)
	assert.Zero(t, dash.RecentUploads)
	assert.Zero(t, dash.UploadSuccessRate)
}

func TestReports_DashboardAggregatesCountsAndTasks(t *testing.T) {
	// Arrange
	handler, db, clock := newReportsHandler(t)
	seedMasterData(t, db, true)

	seedTask(t, db, "upload-ok-1", task.TypeUploadStyles, clock, func(tk *task.Task) {
		require.NoError(t, tk.Start())
		require.NoError(t, tk.Complete())
	})
	seedTask(t, db, "upload-ok-2", task.TypeUploadSales, clock, func(tk *task.Task) {
		require.NoError(t, tk.Start())
		require.NoError(t, tk.Complete())
	})
	seedTask(t, db, "upload-bad", task.TypeUploadSkus, clock, func(tk *task.Task) {
		require.NoError(t, tk.Start())
		require.NoError(t, tk.Fail(shared.NewValidationError("3 validation errors: Row 2: number:mrp")))
	})
	seedTask(t, db, "upload-live", task.TypeUploadStores, clock, func(tk *task.Task) {
		require.NoError(t, tk.Start())
	})
	// outside the seven-day activity window
	oldClock := shared.NewMockClock(reportsNow.Add(-10 * 24 * time.Hour))
	seedTask(t, db, "upload-old", task.TypeUploadStyles, oldClock, func(tk *task.Task) {
		require.NoError(t, tk.Start())
		require.NoError(t, tk.Complete())
	})

	// Act
	resp, err := handler.Handle(context.Background(), &reports.GetDashboardQuery{})

	// Assert
	require.NoError(t, err)
	dash := resp.(*reports.DashboardResponse)
	assert.Equal(t, int64(1), dash.TotalStyles)
	assert.Equal(t, int64(1), dash.TotalStores)
	assert.Equal(t, int64(1), dash.TotalSkus)
	assert.Equal(t, int64(3), dash.TotalSalesRecords)
	assert.Equal(t, "Limited data", dash.SalesDataStatus)
	assert.Equal(t, "Complete setup", dash.MasterDataStatus)

	assert.Equal(t, int64(1), dash.ActiveTasks)
	assert.Zero(t, dash.PendingTasks)
	assert.Equal(t, "Running", dash.ProcessingStatus)

	assert.Equal(t, int64(4), dash.RecentUploads)
	assert.InDelta(t, 2.0/3.0, dash.UploadSuccessRate, 1e-9)
	assert.Equal(t, "Active", dash.RecentActivityStatus)
}

func TestReports_DashboardPartialSetupAndBacklog(t *testing.T) {
	// Arrange: styles only, one queued upload
	handler, db, clock := newReportsHandler(t)
	ctx := context.Background()
	require.NoError(t, persistence.NewBatchWriter(db).ReplaceStyles(ctx, []*catalog.Style{
		catalog.NewStyle("ST-100", "NOVA", "APPAREL", "TEES", 799.5, "F"),
	}, 0, nil))
	seedTask(t, db, "upload-queued", task.TypeUploadStores, clock, nil)

	// Act
	resp, err := handler.Handle(ctx, &reports.GetDashboardQuery{})

	// Assert
	require.NoError(t, err)
	dash := resp.(*reports.DashboardResponse)
	assert.Equal(t, "Partial setup", dash.MasterDataStatus)
	assert.Equal(t, "No data available", dash.SalesDataStatus)
	assert.Equal(t, int64(1), dash.PendingTasks)
	assert.Equal(t, "Backlog", dash.ProcessingStatus)
}

func TestReports_FileStatusOnEmptySystem(t *testing.T) {
	// Arrange
	handler, _, _ := newReportsHandler(t)

	// Act
	resp, err := handler.Handle(context.Background(), &reports.GetFileStatusQuery{})

	// Assert
	require.NoError(t, err)
	files := resp.(*reports.FileStatusResponse).Files
	require.Len(t, files, 4)
	for _, kind := range []string{"styles", "stores", "skus", "sales"} {
		status, ok := files[kind]
		require.True(t, ok, "missing kind %s", kind)
		assert.False(t, status.Exists)
		assert.Zero(t, status.Count)
		assert.False(t, status.Processing)
		assert.False(t, status.Failed)
	}
}

func TestReports_FileStatusTracksLatestUpload(t *testing.T) {
	// Arrange
	handler, db, clock := newReportsHandler(t)
	seedMasterData(t, db, false)

	seedTask(t, db, "styles-live", task.TypeUploadStyles, clock, func(tk *task.Task) {
		require.NoError(t, tk.Start())
		tk.MarkProgress(40, "Validating rows")
	})
	seedTask(t, db, "sales-bad", task.TypeUploadSales, clock, func(tk *task.Task) {
		require.NoError(t, tk.Start())
		tk.AddErrorFile("validation_errors", "/var/lib/noos/artifacts/sales-bad/validation_errors.tsv")
		require.NoError(t, tk.Fail(shared.NewValidationError("2 validation errors: Row 2: date:day")))
	})
	// a failed download must not mark the kind as failed
	seedTask(t, db, "styles-export-bad", task.TypeDownloadStyles, clock, func(tk *task.Task) {
		require.NoError(t, tk.Start())
		require.NoError(t, tk.Fail(shared.NewError(shared.KindInternal, "disk full")))
	})

	// Act
	resp, err := handler.Handle(context.Background(), &reports.GetFileStatusQuery{})

	// Assert
	require.NoError(t, err)
	files := resp.(*reports.FileStatusResponse).Files

	styles := files["styles"]
	assert.True(t, styles.Exists)
	assert.Equal(t, int64(1), styles.Count)
	assert.True(t, styles.Processing)
	assert.False(t, styles.Failed)
	assert.Equal(t, 40.0, styles.ProgressPercentage)
	assert.Equal(t, "Validating rows", styles.ProgressMessage)

	salesStatus := files["sales"]
	assert.False(t, salesStatus.Exists)
	assert.True(t, salesStatus.Failed)
	assert.False(t, salesStatus.Processing)
	assert.Contains(t, salesStatus.ErrorFiles, "validation_errors")

	stores := files["stores"]
	assert.True(t, stores.Exists)
	assert.False(t, stores.Failed)
	assert.False(t, stores.Processing)
}

func TestReports_NoosReportListsRunsNewestFirst(t *testing.T) {
	// Arrange
	handler, db, clock := newReportsHandler(t)
	seedTask(t, db, "run-older", task.TypeAlgorithmRun, clock, func(tk *task.Task) {
		require.NoError(t, tk.Start())
		clock.Advance(3 * time.Minute)
		tk.SetParameter("parameterSetName", "default")
		tk.SetParameter("totalStylesProcessed", 3)
		tk.SetParameter("coreStyles", 1)
		tk.SetParameter("bestsellerStyles", 1)
		tk.SetParameter("fashionStyles", 1)
		tk.SetParameter("parameters", map[string]interface{}{"liquidationThreshold": 0.25})
		require.NoError(t, tk.Complete())
	})
	clock.Advance(time.Hour)
	seedTask(t, db, "run-newer", task.TypeAlgorithmRun, clock, func(tk *task.Task) {
		require.NoError(t, tk.Start())
		require.NoError(t, tk.Fail(shared.NewNoDataError("no sales found in the analysis window")))
	})

	// Act
	resp, err := handler.Handle(context.Background(), &reports.GetNoosReportQuery{})

	// Assert
	require.NoError(t, err)
	runs := resp.(*reports.NoosReportResponse).Runs
	require.Len(t, runs, 2)

	assert.Equal(t, task.StatusFailed, runs[0].ExecutionStatus)
	assert.Empty(t, runs[0].AlgorithmLabel)
	assert.Zero(t, runs[0].TotalStylesProcessed)

	older := runs[1]
	assert.Equal(t, task.StatusCompleted, older.ExecutionStatus)
	assert.Equal(t, "default", older.AlgorithmLabel)
	assert.Equal(t, 3, older.TotalStylesProcessed)
	assert.Equal(t, 1, older.CoreStyles)
	assert.Equal(t, 1, older.BestsellerStyles)
	assert.Equal(t, 1, older.FashionStyles)
	assert.InDelta(t, 3.0, older.ExecutionTimeMinutes, 1e-9)
	require.NotNil(t, older.Parameters)
	assert.Equal(t, 0.25, older.Parameters["liquidationThreshold"])
}

func TestReports_HealthReportGradesDailySuccessRates(t *testing.T) {
	// Arrange: one healthy type, one degraded, one critical, all today
	handler, db, clock := newReportsHandler(t)

	runFor := func(id string, taskType task.Type, runtime time.Duration, fail bool) {
		seedTask(t, db, id, taskType, clock, func(tk *task.Task) {
			require.NoError(t, tk.Start())
			clock.Advance(runtime)
			if fail {
				require.NoError(t, tk.Fail(shared.NewError(shared.KindInternal, "boom")))
			} else {
				require.NoError(t, tk.Complete())
			}
		})
	}

	runFor("styles-1", task.TypeUploadStyles, time.Minute, false)
	runFor("styles-2", task.TypeUploadStyles, 2*time.Minute, false)
	runFor("sales-1", task.TypeUploadSales, time.Minute, false)
	runFor("sales-2", task.TypeUploadSales, time.Minute, true)
	runFor("algo-1", task.TypeAlgorithmRun, time.Minute, true)

	// Act
	resp, err := handler.Handle(context.Background(), &reports.GetHealthReportQuery{})

	// Assert
	require.NoError(t, err)
	rows := resp.(*reports.HealthReportResponse).Rows
	require.Len(t, rows, 3)

	byType := make(map[task.Type]reports.HealthReportRow, len(rows))
	for _, row := range rows {
		assert.Equal(t, "2024-06-01", row.Date)
		byType[row.TaskType] = row
	}

	styles := byType[task.TypeUploadStyles]
	assert.Equal(t, int64(2), styles.TotalTasks)
	assert.Equal(t, int64(2), styles.SuccessfulTasks)
	assert.Zero(t, styles.FailedTasks)
	assert.Equal(t, 1.0, styles.SuccessRate)
	assert.Equal(t, "Healthy", styles.SystemStatus)
	assert.InDelta(t, 1.5, styles.AverageExecutionTime, 1e-9)

	salesRow := byType[task.TypeUploadSales]
	assert.Equal(t, int64(2), salesRow.TotalTasks)
	assert.Equal(t, int64(1), salesRow.SuccessfulTasks)
	assert.Equal(t, int64(1), salesRow.FailedTasks)
	assert.Equal(t, 0.5, salesRow.SuccessRate)
	assert.Equal(t, "Degraded", salesRow.SystemStatus)

	algo := byType[task.TypeAlgorithmRun]
	assert.Equal(t, int64(1), algo.TotalTasks)
	assert.Zero(t, algo.SuccessRate)
	assert.Equal(t, "Critical", algo.SystemStatus)
}

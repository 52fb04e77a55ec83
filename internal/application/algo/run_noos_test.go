package algo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/adapters/persistence"
	"github.com/retailcore/noos-go/internal/application/algo"
	"github.com/retailcore/noos-go/internal/domain/catalog"
	"github.com/retailcore/noos-go/internal/domain/noos"
	"github.com/retailcore/noos-go/internal/domain/params"
	"github.com/retailcore/noos-go/internal/domain/sales"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/test/helpers"
)

// stageRecorder captures the progress ticks a run publishes
type stageRecorder struct {
	cancelErr error
	percents  []float64
	messages  []string
}

func (r *stageRecorder) TaskID() string { return "algorithm-run-test0001" }

func (r *stageRecorder) Progress(_ context.Context, percentage float64, message string, _ int) {
	r.percents = append(r.percents, percentage)
	r.messages = append(r.messages, message)
}

func (r *stageRecorder) CheckCancelled(context.Context) error { return r.cancelErr }

func newRunHandler(t *testing.T) (*algo.RunNoosHandler, *gorm.DB, *shared.MockClock) {
	t.Helper()
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	handler := algo.NewRunNoosHandler(
		persistence.NewParameterSetRepository(db, clock),
		persistence.NewSaleRepository(db),
		persistence.NewSKURepository(db),
		persistence.NewStyleRepository(db),
		persistence.NewNoosResultRepository(db),
		clock,
	)
	return handler, db, clock
}

// seedRunData loads one category of three styles whose March sales classify
// deterministically under the default parameters: CORE-1 sells steadily on
// four consecutive days, BEST-1 spikes on two days ten days apart, FASH-1
// sells twice with one liquidation-priced sale that cleanup discards.
func seedRunData(t *testing.T, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()
	writer := persistence.NewBatchWriter(db)

	require.NoError(t, writer.ReplaceStyles(ctx, []*catalog.Style{
		catalog.NewStyle("BEST-1", "NOVA", "TEES", "CREW", 1000, "M"),
		catalog.NewStyle("CORE-1", "NOVA", "TEES", "CREW", 1000, "M"),
		catalog.NewStyle("FASH-1", "NOVA", "TEES", "VNECK", 500, "F"),
	}, 0, nil))
	require.NoError(t, writer.ReplaceStores(ctx, []*catalog.Store{
		catalog.NewStore("DEL-01", "DELHI"),
	}, 0, nil))

	styleIDs, err := persistence.NewStyleRepository(db).CodeToID(ctx)
	require.NoError(t, err)
	require.NoError(t, writer.ReplaceSkus(ctx, []*catalog.SKU{
		catalog.NewSKU("SKU-BEST", styleIDs["BEST-1"], "BEST-1", "M"),
		catalog.NewSKU("SKU-CORE", styleIDs["CORE-1"], "CORE-1", "M"),
		catalog.NewSKU("SKU-FASH", styleIDs["FASH-1"], "FASH-1", "S"),
	}, 0, nil))

	skuIDs, err := persistence.NewSKURepository(db).CodeToID(ctx)
	require.NoError(t, err)
	storeIDs, err := persistence.NewStoreRepository(db).BranchToID(ctx)
	require.NoError(t, err)
	storeID := storeIDs["DEL-01"]

	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	rows := []*sales.Sale{
		sales.NewSale(day(1), skuIDs["SKU-CORE"], "SKU-CORE", storeID, "DEL-01", 10, 0, 1000),
		sales.NewSale(day(2), skuIDs["SKU-CORE"], "SKU-CORE", storeID, "DEL-01", 10, 0, 1000),
		sales.NewSale(day(3), skuIDs["SKU-CORE"], "SKU-CORE", storeID, "DEL-01", 10, 0, 1000),
		sales.NewSale(day(4), skuIDs["SKU-CORE"], "SKU-CORE", storeID, "DEL-01", 10, 0, 1000),
		sales.NewSale(day(1), skuIDs["SKU-BEST"], "SKU-BEST", storeID, "DEL-01", 50, 0, 5000),
		sales.NewSale(day(10), skuIDs["SKU-BEST"], "SKU-BEST", storeID, "DEL-01", 50, 0, 5000),
		sales.NewSale(day(5), skuIDs["SKU-FASH"], "SKU-FASH", storeID, "DEL-01", 2, 0, 300),
		// discount rate 0.5 exceeds the default liquidation threshold
		sales.NewSale(day(20), skuIDs["SKU-FASH"], "SKU-FASH", storeID, "DEL-01", 1, 500, 500),
	}
	require.NoError(t, writer.ReplaceSales(ctx, rows, 0, nil))
}

func TestRunNoosHandler_ClassifiesSeededSales(t *testing.T) {
	// Arrange
	handler, db, clock := newRunHandler(t)
	seedRunData(t, db)
	rt := &stageRecorder{}
	ctx := context.Background()

	// Act
	resp, err := handler.Handle(ctx, &algo.RunNoosCommand{TaskID: rt.TaskID(), Runtime: rt})

	// Assert
	require.NoError(t, err)
	result := resp.(*task.ExecutionResult)
	assert.Equal(t, 8, result.TotalRecords)
	assert.Equal(t, 8, result.ProcessedRecords)
	assert.Equal(t, "styles=3 core=1 bestseller=1 fashion=1 discarded=1 unresolved=0", result.FinalMessage)
	assert.Equal(t, []float64{10, 25, 40, 65, 80, 92, 100}, rt.percents)

	assert.Equal(t, result.FinalMessage, result.Parameters["summary"])
	assert.Equal(t, 3, result.Parameters["totalStylesProcessed"])
	assert.Equal(t, 1, result.Parameters["coreStyles"])
	assert.Equal(t, 1, result.Parameters["bestsellerStyles"])
	assert.Equal(t, 1, result.Parameters["fashionStyles"])
	assert.Equal(t, 1, result.Parameters["discardedLiquidation"])
	assert.Equal(t, 0, result.Parameters["unresolvedSales"])
	assert.Equal(t, params.DefaultSetName, result.Parameters["parameterSetName"])
	assert.NotContains(t, result.Parameters, "substitutions")

	values, ok := result.Parameters["parameters"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 0.25, values["liquidationThreshold"])
	assert.Equal(t, 1.20, values["bestsellerMultiplier"])
	assert.Equal(t, 25.0, values["minVolumeThreshold"])
	assert.Equal(t, 0.75, values["consistencyThreshold"])
	assert.NotContains(t, values, "analysisStartDate")
	assert.NotContains(t, values, "analysisEndDate")

	stored, err := persistence.NewNoosResultRepository(db).FindByRunID(ctx, rt.TaskID())
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "BEST-1", stored[0].StyleCode)
	assert.Equal(t, noos.LabelBestseller, stored[0].Label)
	assert.Equal(t, "CORE-1", stored[1].StyleCode)
	assert.Equal(t, noos.LabelCore, stored[1].Label)
	assert.Equal(t, "FASH-1", stored[2].StyleCode)
	assert.Equal(t, noos.LabelFashion, stored[2].Label)

	// BEST-1: 100 units over the 10-day span of its own sales
	assert.InDelta(t, 10.0, stored[0].StyleROS, 1e-9)
	assert.Equal(t, 100, stored[0].TotalQuantitySold)
	assert.Equal(t, 10, stored[0].DaysAvailable)
	assert.Equal(t, 2, stored[0].DaysWithSales)
	assert.InDelta(t, 100.0*10000/14300, stored[0].StyleRevContribution, 1e-6)
	for _, r := range stored {
		assert.Equal(t, rt.TaskID(), r.AlgorithmRunID)
		assert.WithinDuration(t, clock.Now(), r.CalculatedDate, time.Second)
	}
}

func TestRunNoosHandler_ReplacesPreviousResults(t *testing.T) {
	// Arrange
	handler, db, _ := newRunHandler(t)
	seedRunData(t, db)
	results := persistence.NewNoosResultRepository(db)
	ctx := context.Background()
	require.NoError(t, results.ReplaceAll(ctx, []*noos.Result{
		{Category: "TEES", StyleCode: "OLD-1", Label: noos.LabelCore, AlgorithmRunID: "run-0", CalculatedDate: time.Now()},
	}))

	// Act
	_, err := handler.Handle(ctx, &algo.RunNoosCommand{TaskID: "algorithm-run-test0002"})

	// Assert
	require.NoError(t, err)
	all, err := results.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, r := range all {
		assert.Equal(t, "algorithm-run-test0002", r.AlgorithmRunID)
		assert.NotEqual(t, "OLD-1", r.StyleCode)
	}
}

func TestRunNoosHandler_WindowOverrideNarrowsAnalysis(t *testing.T) {
	// Arrange
	handler, db, _ := newRunHandler(t)
	seedRunData(t, db)
	ctx := context.Background()

	// Act
	resp, err := handler.Handle(ctx, &algo.RunNoosCommand{
		TaskID: "algorithm-run-test0003",
		Overrides: map[string]interface{}{
			"analysisStartDate": "2024-03-01",
			"analysisEndDate":   "2024-03-02",
		},
	})

	// Assert: only the first two days of sales are in scope, daysAvailable
	// comes from the window, and CORE-1 no longer reaches the volume floor
	require.NoError(t, err)
	result := resp.(*task.ExecutionResult)
	assert.Equal(t, 3, result.TotalRecords)
	assert.Equal(t, "styles=2 core=0 bestseller=1 fashion=1 discarded=0 unresolved=0", result.FinalMessage)

	values, ok := result.Parameters["parameters"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2024-03-01", values["analysisStartDate"])
	assert.Equal(t, "2024-03-02", values["analysisEndDate"])

	stored, err := persistence.NewNoosResultRepository(db).FindByRunID(ctx, "algorithm-run-test0003")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "BEST-1", stored[0].StyleCode)
	assert.Equal(t, noos.LabelBestseller, stored[0].Label)
	assert.Equal(t, 2, stored[0].DaysAvailable)
	assert.Equal(t, "CORE-1", stored[1].StyleCode)
	assert.Equal(t, noos.LabelFashion, stored[1].Label)
}

func TestRunNoosHandler_HalfSetWindowSelectsAllSales(t *testing.T) {
	// Arrange
	handler, db, _ := newRunHandler(t)
	seedRunData(t, db)
	ctx := context.Background()

	// Act: only the start date is set, so the window does not apply
	resp, err := handler.Handle(ctx, &algo.RunNoosCommand{
		TaskID: "algorithm-run-test0008",
		Overrides: map[string]interface{}{
			"analysisStartDate": "2024-03-05",
		},
	})

	// Assert: sales before the lone start date stay in scope, and
	// daysAvailable falls back to each style's observed span
	require.NoError(t, err)
	result := resp.(*task.ExecutionResult)
	assert.Equal(t, 8, result.TotalRecords)
	assert.Equal(t, "styles=3 core=1 bestseller=1 fashion=1 discarded=1 unresolved=0", result.FinalMessage)

	stored, err := persistence.NewNoosResultRepository(db).FindByRunID(ctx, "algorithm-run-test0008")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "BEST-1", stored[0].StyleCode)
	assert.Equal(t, 10, stored[0].DaysAvailable)
}

func TestRunNoosHandler_NoSalesInWindowKeepsPreviousResults(t *testing.T) {
	// Arrange
	handler, db, _ := newRunHandler(t)
	seedRunData(t, db)
	results := persistence.NewNoosResultRepository(db)
	ctx := context.Background()
	require.NoError(t, results.ReplaceAll(ctx, []*noos.Result{
		{Category: "TEES", StyleCode: "OLD-1", Label: noos.LabelCore, AlgorithmRunID: "run-0", CalculatedDate: time.Now()},
	}))

	// Act
	_, err := handler.Handle(ctx, &algo.RunNoosCommand{
		TaskID: "algorithm-run-test0004",
		Overrides: map[string]interface{}{
			"analysisStartDate": "2030-01-01",
			"analysisEndDate":   "2030-12-31",
		},
	})

	// Assert
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindNoData))
	assert.EqualError(t, err, "no sales found in the analysis window")
	all, err := results.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "OLD-1", all[0].StyleCode)
}

func TestRunNoosHandler_UsesStoredActiveParameters(t *testing.T) {
	// Arrange
	handler, db, clock := newRunHandler(t)
	seedRunData(t, db)
	ctx := context.Background()
	_, err := persistence.NewParameterSetRepository(db, clock).CreateActive(ctx, &params.ParameterSet{
		Name:                   "strict",
		LiquidationThreshold:   0.25,
		BestsellerMultiplier:   1.20,
		MinVolumeThreshold:     150,
		ConsistencyThreshold:   0.75,
		CoreDurationMonths:     6,
		BestsellerDurationDays: 90,
	})
	require.NoError(t, err)

	// Act
	resp, err := handler.Handle(ctx, &algo.RunNoosCommand{TaskID: "algorithm-run-test0005"})

	// Assert: no style reaches 150 units, so nothing is core or bestseller
	require.NoError(t, err)
	result := resp.(*task.ExecutionResult)
	assert.Equal(t, "styles=3 core=0 bestseller=0 fashion=3 discarded=1 unresolved=0", result.FinalMessage)
	assert.Equal(t, "strict", result.Parameters["parameterSetName"])
	values, ok := result.Parameters["parameters"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 150.0, values["minVolumeThreshold"])
}

func TestRunNoosHandler_SanitizesStoredParameters(t *testing.T) {
	// Arrange
	handler, db, clock := newRunHandler(t)
	seedRunData(t, db)
	ctx := context.Background()
	set := params.Defaults()
	set.Name = "drifted"
	set.BestsellerMultiplier = 0.5
	_, err := persistence.NewParameterSetRepository(db, clock).CreateActive(ctx, set)
	require.NoError(t, err)

	// Act
	resp, err := handler.Handle(ctx, &algo.RunNoosCommand{TaskID: "algorithm-run-test0006"})

	// Assert: the out-of-range multiplier is replaced before classifying
	require.NoError(t, err)
	result := resp.(*task.ExecutionResult)
	assert.Equal(t, "styles=3 core=1 bestseller=1 fashion=1 discarded=1 unresolved=0", result.FinalMessage)

	subs, ok := result.Parameters["substitutions"].([]string)
	require.True(t, ok)
	assert.Contains(t, subs, "bestsellerMultiplier: 0.5 replaced with 1.2")
	values, ok := result.Parameters["parameters"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.2, values["bestsellerMultiplier"])
}

func TestRunNoosHandler_EmptyDateOverrideClearsStoredWindow(t *testing.T) {
	// Arrange
	handler, db, clock := newRunHandler(t)
	seedRunData(t, db)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	set := params.Defaults()
	set.Name = "windowed"
	set.AnalysisStartDate = &start
	set.AnalysisEndDate = &end
	_, err := persistence.NewParameterSetRepository(db, clock).CreateActive(ctx, set)
	require.NoError(t, err)

	// Act
	resp, err := handler.Handle(ctx, &algo.RunNoosCommand{
		TaskID: "algorithm-run-test0007",
		Overrides: map[string]interface{}{
			"analysisStartDate": nil,
			"analysisEndDate":   "",
		},
	})

	// Assert: the stored window no longer applies, every sale is in scope
	require.NoError(t, err)
	result := resp.(*task.ExecutionResult)
	assert.Equal(t, 8, result.TotalRecords)
	values, ok := result.Parameters["parameters"].(map[string]interface{})
	require.True(t, ok)
	assert.NotContains(t, values, "analysisStartDate")
	assert.NotContains(t, values, "analysisEndDate")
}

func TestRunNoosHandler_RejectsInvalidOverrides(t *testing.T) {
	handler, _, _ := newRunHandler(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		overrides map[string]interface{}
		wantErr   string
	}{
		{
			name:      "unknown key",
			overrides: map[string]interface{}{"volumeFloor": 10.0},
			wantErr:   `unknown parameter override "volumeFloor"`,
		},
		{
			name:      "float key with string value",
			overrides: map[string]interface{}{"minVolumeThreshold": "ten"},
			wantErr:   "override minVolumeThreshold must be a number",
		},
		{
			name:      "int key with string value",
			overrides: map[string]interface{}{"coreDurationMonths": "six"},
			wantErr:   "override coreDurationMonths must be a number",
		},
		{
			name:      "name with number value",
			overrides: map[string]interface{}{"parameterSetName": 7.0},
			wantErr:   "override parameterSetName must be a string",
		},
		{
			name:      "malformed date",
			overrides: map[string]interface{}{"analysisStartDate": "March 1st"},
			wantErr:   "override analysisStartDate must be a YYYY-MM-DD string",
		},
		{
			name:      "date with number value",
			overrides: map[string]interface{}{"analysisEndDate": 20240301.0},
			wantErr:   "override analysisEndDate must be a YYYY-MM-DD string",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := handler.Handle(ctx, &algo.RunNoosCommand{TaskID: "algorithm-run-bad", Overrides: tc.overrides})

			require.Error(t, err)
			assert.True(t, shared.IsKind(err, shared.KindValidation))
			assert.EqualError(t, err, tc.wantErr)
		})
	}
}

func TestRunNoosHandler_StopsWhenCancelled(t *testing.T) {
	// Arrange
	handler, db, _ := newRunHandler(t)
	seedRunData(t, db)
	rt := &stageRecorder{cancelErr: shared.NewError(shared.KindCancelled, "task was cancelled")}
	ctx := context.Background()

	// Act
	_, err := handler.Handle(ctx, &algo.RunNoosCommand{TaskID: rt.TaskID(), Runtime: rt})

	// Assert: the run stops at the first stage boundary, before any persist
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindCancelled))
	assert.Empty(t, rt.percents)
	count, err := persistence.NewNoosResultRepository(db).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/noos-go/internal/adapters/persistence"
	"github.com/retailcore/noos-go/internal/domain/noos"
	"github.com/retailcore/noos-go/internal/domain/params"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/test/helpers"
)

func TestDataWiper_ClearAllReportsCounts(t *testing.T) {
	// Arrange - master data, sales and a result set
	db := helpers.NewTestDB(t)
	seedSales(t, db)
	require.NoError(t, persistence.NewNoosResultRepository(db).ReplaceAll(context.Background(),
		[]*noos.Result{classificationRow("ST-100", noos.LabelCore, "run-1")}))

	wiper := persistence.NewDataWiper(db)

	// Act
	deleted, err := wiper.ClearAll(context.Background())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted["sales"])
	assert.Equal(t, int64(1), deleted["noos_results"])
	assert.Equal(t, int64(1), deleted["skus"])
	assert.Equal(t, int64(1), deleted["styles"])
	assert.Equal(t, int64(1), deleted["stores"])

	count, err := persistence.NewSaleRepository(db).Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDataWiper_TasksAndParametersSurvive(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	ctx := context.Background()
	seedSales(t, db)

	tasks := persistence.NewTaskRepository(db)
	clock := shared.NewMockClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, tasks.Create(ctx, task.New("w-1", task.TypeUploadStyles, "styles.tsv", "", nil, clock)))

	paramsRepo := persistence.NewParameterSetRepository(db, clock)
	_, err := paramsRepo.CreateActive(ctx, params.Defaults())
	require.NoError(t, err)

	// Act
	_, err = persistence.NewDataWiper(db).ClearAll(ctx)

	// Assert - operational history is not data
	require.NoError(t, err)

	survivor, err := tasks.FindByID(ctx, "w-1")
	require.NoError(t, err)
	assert.Equal(t, "w-1", survivor.ID())

	active, err := paramsRepo.FindActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, params.DefaultSetName, active.Name)
}

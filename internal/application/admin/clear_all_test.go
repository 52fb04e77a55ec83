package admin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/noos-go/internal/adapters/persistence"
	"github.com/retailcore/noos-go/internal/application/admin"
	"github.com/retailcore/noos-go/internal/domain/catalog"
	"github.com/retailcore/noos-go/internal/domain/params"
	"github.com/retailcore/noos-go/internal/domain/task"
	"github.com/retailcore/noos-go/test/helpers"
)

func TestClearAllHandler_WipesRetailDataOnly(t *testing.T) {
	// Arrange: master data plus a task and a parameter set that must survive
	db := helpers.NewTestDB(t)
	ctx := context.Background()
	writer := persistence.NewBatchWriter(db)
	require.NoError(t, writer.ReplaceStyles(ctx, []*catalog.Style{
		catalog.NewStyle("ST-100", "NOVA", "APPAREL", "TEES", 799.5, "F"),
		catalog.NewStyle("ST-200", "ALTO", "APPAREL", "POLO", 1099, "M"),
	}, 0, nil))
	require.NoError(t, writer.ReplaceStores(ctx, []*catalog.Store{
		catalog.NewStore("DEL-01", "DELHI"),
	}, 0, nil))

	tasks := persistence.NewTaskRepository(db)
	require.NoError(t, tasks.Create(ctx, task.New("upload-1", task.TypeUploadStyles, "styles.tsv", "tester", nil, nil)))
	paramsRepo := persistence.NewParameterSetRepository(db, nil)
	_, err := paramsRepo.CreateActive(ctx, params.Defaults())
	require.NoError(t, err)

	handler := admin.NewClearAllHandler(persistence.NewDataWiper(db))

	// Act
	resp, err := handler.Handle(ctx, &admin.ClearAllCommand{})

	// Assert
	require.NoError(t, err)
	deleted := resp.(*admin.ClearAllResponse).Deleted
	assert.Equal(t, int64(2), deleted["styles"])
	assert.Equal(t, int64(1), deleted["stores"])
	assert.Equal(t, int64(0), deleted["skus"])
	assert.Equal(t, int64(0), deleted["sales"])
	assert.Equal(t, int64(0), deleted["noos_results"])

	styleCount, err := persistence.NewStyleRepository(db).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, styleCount)

	_, err = tasks.FindByID(ctx, "upload-1")
	assert.NoError(t, err)
	active, err := paramsRepo.FindActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, params.DefaultSetName, active.Name)
}

func TestClearAllHandler_RejectsWrongRequestType(t *testing.T) {
	db := helpers.NewTestDB(t)
	handler := admin.NewClearAllHandler(persistence.NewDataWiper(db))

	_, err := handler.Handle(context.Background(), &admin.ClearAllResponse{})

	require.Error(t, err)
}

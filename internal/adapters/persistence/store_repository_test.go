package persistence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/noos-go/internal/adapters/persistence"
	"github.com/retailcore/noos-go/internal/domain/catalog"
	"github.com/retailcore/noos-go/test/helpers"
)

func seedStores(t *testing.T, writer *persistence.BatchWriterGORM) {
	t.Helper()
	stores := []*catalog.Store{
		catalog.NewStore("MUM-02", "Mumbai"),
		catalog.NewStore("DEL-01", "Delhi"),
	}
	require.NoError(t, writer.ReplaceStores(context.Background(), stores, 0, nil))
}

func TestStoreRepository_FindAllOrdersByBranch(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	seedStores(t, persistence.NewBatchWriter(db))
	repo := persistence.NewStoreRepository(db)

	// Act
	stores, err := repo.FindAll(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, "DEL-01", stores[0].Branch)
	assert.Equal(t, "MUM-02", stores[1].Branch)
	assert.Equal(t, "Delhi", stores[0].City)
}

func TestStoreRepository_BranchToIDAndCount(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	seedStores(t, persistence.NewBatchWriter(db))
	repo := persistence.NewStoreRepository(db)

	// Act
	index, err := repo.BranchToID(context.Background())
	require.NoError(t, err)
	count, err := repo.Count(context.Background())
	require.NoError(t, err)

	// Assert
	assert.Equal(t, int64(2), count)
	require.Len(t, index, 2)
	assert.Contains(t, index, "DEL-01")
	assert.Contains(t, index, "MUM-02")
}

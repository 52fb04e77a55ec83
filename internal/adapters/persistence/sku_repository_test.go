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

func seedSkus(t *testing.T, db *persistence.BatchWriterGORM, styleID int64) {
	t.Helper()
	skus := []*catalog.SKU{
		catalog.NewSKU("SKU-B", styleID, "ST-100", "L"),
		catalog.NewSKU("SKU-A", styleID, "ST-100", "M"),
	}
	require.NoError(t, db.ReplaceSkus(context.Background(), skus, 0, nil))
}

func TestSKURepository_FindAllOrdersBySKU(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	writer := persistence.NewBatchWriter(db)
	require.NoError(t, writer.ReplaceStyles(context.Background(),
		[]*catalog.Style{catalog.NewStyle("ST-100", "Nova", "Apparel", "Tees", 799, "F")}, 0, nil))

	styleIndex, err := persistence.NewStyleRepository(db).CodeToID(context.Background())
	require.NoError(t, err)
	seedSkus(t, writer, styleIndex["ST-100"])

	repo := persistence.NewSKURepository(db)

	// Act
	skus, err := repo.FindAll(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, skus, 2)
	assert.Equal(t, "SKU-A", skus[0].SKUCode)
	assert.Equal(t, "SKU-B", skus[1].SKUCode)
	assert.Equal(t, "ST-100", skus[0].StyleCode)
	assert.Equal(t, styleIndex["ST-100"], skus[0].StyleID)
}

func TestSKURepository_CodeToIDAndCount(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	writer := persistence.NewBatchWriter(db)
	require.NoError(t, writer.ReplaceStyles(context.Background(),
		[]*catalog.Style{catalog.NewStyle("ST-100", "Nova", "Apparel", "Tees", 799, "F")}, 0, nil))

	styleIndex, err := persistence.NewStyleRepository(db).CodeToID(context.Background())
	require.NoError(t, err)
	seedSkus(t, writer, styleIndex["ST-100"])

	repo := persistence.NewSKURepository(db)

	// Act
	index, err := repo.CodeToID(context.Background())
	require.NoError(t, err)
	count, err := repo.Count(context.Background())
	require.NoError(t, err)

	// Assert
	assert.Equal(t, int64(2), count)
	require.Len(t, index, 2)
	assert.Contains(t, index, "SKU-A")
	assert.Contains(t, index, "SKU-B")
}

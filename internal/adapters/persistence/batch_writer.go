package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/domain/catalog"
	"github.com/retailcore/noos-go/internal/domain/ingest"
	"github.com/retailcore/noos-go/internal/domain/sales"
)

// BatchWriterGORM persists validated upload batches. Each replace clears
// dependent tables in dependency order and inserts the new rows in chunks,
// all inside one transaction; the checkpoint callback can abort the batch
// between chunks, which rolls everything back.
type BatchWriterGORM struct {
	db *gorm.DB
}

// NewBatchWriter creates a new GORM-based batch writer
func NewBatchWriter(db *gorm.DB) *BatchWriterGORM {
	return &BatchWriterGORM{db: db}
}

// ReplaceStyles replaces all styles. Dependent skus and sales are cleared
// first so foreign keys stay consistent.
func (w *BatchWriterGORM) ReplaceStyles(ctx context.Context, rows []*catalog.Style, chunkSize int, checkpoint ingest.Checkpoint) error {
	models := make([]StyleModel, len(rows))
	for i, row := range rows {
		models[i] = StyleModel{
			StyleCode:   row.StyleCode,
			Brand:       row.Brand,
			Category:    row.Category,
			SubCategory: row.SubCategory,
			MRP:         row.MRP,
			Gender:      row.Gender,
		}
	}

	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearTables(tx, &SaleModel{}, &SKUModel{}, &StyleModel{}); err != nil {
			return err
		}
		return insertChunks(tx, models, chunkSize, checkpoint)
	})
}

// ReplaceStores replaces all stores. Dependent sales are cleared first.
func (w *BatchWriterGORM) ReplaceStores(ctx context.Context, rows []*catalog.Store, chunkSize int, checkpoint ingest.Checkpoint) error {
	models := make([]StoreModel, len(rows))
	for i, row := range rows {
		models[i] = StoreModel{
			Branch: row.Branch,
			City:   row.City,
		}
	}

	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearTables(tx, &SaleModel{}, &StoreModel{}); err != nil {
			return err
		}
		return insertChunks(tx, models, chunkSize, checkpoint)
	})
}

// ReplaceSkus replaces all SKUs. Dependent sales are cleared first.
func (w *BatchWriterGORM) ReplaceSkus(ctx context.Context, rows []*catalog.SKU, chunkSize int, checkpoint ingest.Checkpoint) error {
	models := make([]SKUModel, len(rows))
	for i, row := range rows {
		models[i] = SKUModel{
			SKU:       row.SKUCode,
			StyleID:   row.StyleID,
			StyleCode: row.StyleCode,
			Size:      row.Size,
		}
	}

	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearTables(tx, &SaleModel{}, &SKUModel{}); err != nil {
			return err
		}
		return insertChunks(tx, models, chunkSize, checkpoint)
	})
}

// ReplaceSales replaces all sales
func (w *BatchWriterGORM) ReplaceSales(ctx context.Context, rows []*sales.Sale, chunkSize int, checkpoint ingest.Checkpoint) error {
	models := make([]SaleModel, len(rows))
	for i, row := range rows {
		models[i] = SaleModel{
			Date:     row.Date,
			SKUID:    row.SKUID,
			StoreID:  row.StoreID,
			Quantity: row.Quantity,
			Discount: row.Discount,
			Revenue:  row.Revenue,
		}
	}

	return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := clearTables(tx, &SaleModel{}); err != nil {
			return err
		}
		return insertChunks(tx, models, chunkSize, checkpoint)
	})
}

// clearTables deletes all rows of the given models in order
func clearTables(tx *gorm.DB, models ...interface{}) error {
	for _, model := range models {
		if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
			return fmt.Errorf("failed to clear table: %w", err)
		}
	}
	return nil
}

// insertChunks inserts models chunk by chunk, reporting the running row
// count to the checkpoint after every chunk. A checkpoint error aborts the
// surrounding transaction.
func insertChunks[T any](tx *gorm.DB, models []T, chunkSize int, checkpoint ingest.Checkpoint) error {
	if chunkSize <= 0 {
		chunkSize = ingest.DefaultChunkSize
	}

	for start := 0; start < len(models); start += chunkSize {
		end := start + chunkSize
		if end > len(models) {
			end = len(models)
		}
		chunk := models[start:end]
		if err := tx.Create(&chunk).Error; err != nil {
			return fmt.Errorf("failed to insert chunk at row %d: %w", start, err)
		}
		if checkpoint != nil {
			if err := checkpoint(end); err != nil {
				return err
			}
		}
	}
	return nil
}

package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// DataWiperGORM clears every stored data set. Task history and parameter
// sets deliberately survive a wipe.
type DataWiperGORM struct {
	db *gorm.DB
}

// NewDataWiper creates a new GORM-based data wiper
func NewDataWiper(db *gorm.DB) *DataWiperGORM {
	return &DataWiperGORM{db: db}
}

// ClearAll deletes sales, results and master data in foreign-key order
// inside one transaction and reports the deleted row counts per table
func (w *DataWiperGORM) ClearAll(ctx context.Context) (map[string]int64, error) {
	deleted := make(map[string]int64)

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tables := []struct {
			name  string
			model interface{}
		}{
			{"sales", &SaleModel{}},
			{"noos_results", &NoosResultModel{}},
			{"skus", &SKUModel{}},
			{"styles", &StyleModel{}},
			{"stores", &StoreModel{}},
		}

		for _, table := range tables {
			result := tx.Where("1 = 1").Delete(table.model)
			if result.Error != nil {
				return fmt.Errorf("failed to clear %s: %w", table.name, result.Error)
			}
			deleted[table.name] = result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

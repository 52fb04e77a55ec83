package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/domain/sales"
)

// SaleRepositoryGORM implements read access to sales. Rows store id-only
// references; sku codes and branches are joined back in here so callers
// always see fully resolved entities.
type SaleRepositoryGORM struct {
	db *gorm.DB
}

// NewSaleRepository creates a new GORM-based sale repository
func NewSaleRepository(db *gorm.DB) *SaleRepositoryGORM {
	return &SaleRepositoryGORM{db: db}
}

// saleRow is the flat scan target for joined sale reads
type saleRow struct {
	ID       int64     `gorm:"column:id"`
	Date     time.Time `gorm:"column:date"`
	SKUID    int64     `gorm:"column:sku_id"`
	SKUCode  string    `gorm:"column:sku_code"`
	StoreID  int64     `gorm:"column:store_id"`
	Branch   string    `gorm:"column:branch"`
	Quantity int       `gorm:"column:quantity"`
	Discount float64   `gorm:"column:discount"`
	Revenue  float64   `gorm:"column:revenue"`
}

func (r *SaleRepositoryGORM) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("sales").
		Select("sales.id, sales.date, sales.sku_id, skus.sku AS sku_code, " +
			"sales.store_id, stores.branch AS branch, " +
			"sales.quantity, sales.discount, sales.revenue").
		Joins("JOIN skus ON skus.id = sales.sku_id").
		Joins("JOIN stores ON stores.id = sales.store_id")
}

// FindByDateRange retrieves sales with date in [from, to]. Nil bounds
// select all sales.
func (r *SaleRepositoryGORM) FindByDateRange(ctx context.Context, from, to *time.Time) ([]*sales.Sale, error) {
	query := r.joined(ctx)
	if from != nil {
		query = query.Where("sales.date >= ?", *from)
	}
	if to != nil {
		query = query.Where("sales.date <= ?", *to)
	}

	var rows []saleRow
	if err := query.Order("sales.id ASC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find sales by date range: %w", err)
	}
	return rowsToSales(rows), nil
}

// ForEachBatch streams all sales in id order using keyset pagination, so
// the process never holds more than one batch in memory
func (r *SaleRepositoryGORM) ForEachBatch(ctx context.Context, batchSize int, fn func(batch []*sales.Sale) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	lastID := int64(0)
	for {
		var rows []saleRow
		err := r.joined(ctx).
			Where("sales.id > ?", lastID).
			Order("sales.id ASC").
			Limit(batchSize).
			Scan(&rows).Error
		if err != nil {
			return fmt.Errorf("failed to scan sales batch: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		if err := fn(rowsToSales(rows)); err != nil {
			return err
		}

		lastID = rows[len(rows)-1].ID
		if len(rows) < batchSize {
			return nil
		}
	}
}

// Count returns the number of stored sales
func (r *SaleRepositoryGORM) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&SaleModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count sales: %w", err)
	}
	return count, nil
}

func rowsToSales(rows []saleRow) []*sales.Sale {
	out := make([]*sales.Sale, len(rows))
	for i, row := range rows {
		out[i] = &sales.Sale{
			ID:       row.ID,
			Date:     row.Date,
			SKUID:    row.SKUID,
			SKUCode:  row.SKUCode,
			StoreID:  row.StoreID,
			Branch:   row.Branch,
			Quantity: row.Quantity,
			Discount: row.Discount,
			Revenue:  row.Revenue,
		}
	}
	return out
}

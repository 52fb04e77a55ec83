package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/domain/catalog"
)

// SKURepositoryGORM implements read access to SKUs. Writes go through the
// ingestion batch writer.
type SKURepositoryGORM struct {
	db *gorm.DB
}

// NewSKURepository creates a new GORM-based SKU repository
func NewSKURepository(db *gorm.DB) *SKURepositoryGORM {
	return &SKURepositoryGORM{db: db}
}

// FindAll retrieves all SKUs ordered by sku code
func (r *SKURepositoryGORM) FindAll(ctx context.Context) ([]*catalog.SKU, error) {
	var models []SKUModel
	if err := r.db.WithContext(ctx).Order("sku ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list skus: %w", err)
	}

	skus := make([]*catalog.SKU, len(models))
	for i, model := range models {
		skus[i] = &catalog.SKU{
			ID:        model.ID,
			SKUCode:   model.SKU,
			StyleID:   model.StyleID,
			StyleCode: model.StyleCode,
			Size:      model.Size,
		}
	}
	return skus, nil
}

// CodeToID returns a sku -> id index for foreign-key resolution
func (r *SKURepositoryGORM) CodeToID(ctx context.Context) (map[string]int64, error) {
	type pair struct {
		SKU string
		ID  int64
	}
	var pairs []pair
	err := r.db.WithContext(ctx).
		Model(&SKUModel{}).
		Select("sku, id").
		Scan(&pairs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to index skus: %w", err)
	}

	index := make(map[string]int64, len(pairs))
	for _, p := range pairs {
		index[p.SKU] = p.ID
	}
	return index, nil
}

// Count returns the number of stored SKUs
func (r *SKURepositoryGORM) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&SKUModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count skus: %w", err)
	}
	return count, nil
}

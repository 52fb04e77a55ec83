package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/domain/catalog"
)

// StoreRepositoryGORM implements read access to stores. Writes go through
// the ingestion batch writer.
type StoreRepositoryGORM struct {
	db *gorm.DB
}

// NewStoreRepository creates a new GORM-based store repository
func NewStoreRepository(db *gorm.DB) *StoreRepositoryGORM {
	return &StoreRepositoryGORM{db: db}
}

// FindAll retrieves all stores ordered by branch
func (r *StoreRepositoryGORM) FindAll(ctx context.Context) ([]*catalog.Store, error) {
	var models []StoreModel
	if err := r.db.WithContext(ctx).Order("branch ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}

	stores := make([]*catalog.Store, len(models))
	for i, model := range models {
		stores[i] = &catalog.Store{
			ID:     model.ID,
			Branch: model.Branch,
			City:   model.City,
		}
	}
	return stores, nil
}

// BranchToID returns a branch -> id index for foreign-key resolution
func (r *StoreRepositoryGORM) BranchToID(ctx context.Context) (map[string]int64, error) {
	type pair struct {
		Branch string
		ID     int64
	}
	var pairs []pair
	err := r.db.WithContext(ctx).
		Model(&StoreModel{}).
		Select("branch, id").
		Scan(&pairs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to index stores: %w", err)
	}

	index := make(map[string]int64, len(pairs))
	for _, p := range pairs {
		index[p.Branch] = p.ID
	}
	return index, nil
}

// Count returns the number of stored stores
func (r *StoreRepositoryGORM) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&StoreModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count stores: %w", err)
	}
	return count, nil
}

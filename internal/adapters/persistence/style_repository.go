package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/domain/catalog"
	"github.com/retailcore/noos-go/internal/domain/shared"
)

// StyleRepositoryGORM implements read access to styles. Writes go through
// the ingestion batch writer.
type StyleRepositoryGORM struct {
	db *gorm.DB
}

// NewStyleRepository creates a new GORM-based style repository
func NewStyleRepository(db *gorm.DB) *StyleRepositoryGORM {
	return &StyleRepositoryGORM{db: db}
}

// FindAll retrieves all styles ordered by styleCode
func (r *StyleRepositoryGORM) FindAll(ctx context.Context) ([]*catalog.Style, error) {
	var models []StyleModel
	if err := r.db.WithContext(ctx).Order("style_code ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list styles: %w", err)
	}

	styles := make([]*catalog.Style, len(models))
	for i, model := range models {
		styles[i] = modelToStyle(&model)
	}
	return styles, nil
}

// FindByCode retrieves a style by its natural key
func (r *StyleRepositoryGORM) FindByCode(ctx context.Context, styleCode string) (*catalog.Style, error) {
	var model StyleModel
	result := r.db.WithContext(ctx).Where("style_code = ?", styleCode).First(&model)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, shared.NewNotFoundError("style", styleCode)
		}
		return nil, fmt.Errorf("failed to find style: %w", result.Error)
	}
	return modelToStyle(&model), nil
}

// CodeToID returns a styleCode -> id index for foreign-key resolution
func (r *StyleRepositoryGORM) CodeToID(ctx context.Context) (map[string]int64, error) {
	type pair struct {
		StyleCode string
		ID        int64
	}
	var pairs []pair
	err := r.db.WithContext(ctx).
		Model(&StyleModel{}).
		Select("style_code, id").
		Scan(&pairs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to index styles: %w", err)
	}

	index := make(map[string]int64, len(pairs))
	for _, p := range pairs {
		index[p.StyleCode] = p.ID
	}
	return index, nil
}

// Count returns the number of stored styles
func (r *StyleRepositoryGORM) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&StyleModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count styles: %w", err)
	}
	return count, nil
}

func modelToStyle(model *StyleModel) *catalog.Style {
	return &catalog.Style{
		ID:          model.ID,
		StyleCode:   model.StyleCode,
		Brand:       model.Brand,
		Category:    model.Category,
		SubCategory: model.SubCategory,
		MRP:         model.MRP,
		Gender:      model.Gender,
	}
}

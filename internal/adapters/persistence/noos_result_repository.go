package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/domain/noos"
)

// resultInsertChunk bounds the rows per INSERT when swapping in a new
// result set
const resultInsertChunk = 500

// NoosResultRepositoryGORM implements classification result persistence
type NoosResultRepositoryGORM struct {
	db *gorm.DB
}

// NewNoosResultRepository creates a new GORM-based result repository
func NewNoosResultRepository(db *gorm.DB) *NoosResultRepositoryGORM {
	return &NoosResultRepositoryGORM{db: db}
}

// ReplaceAll swaps the stored result set for the given one in a single
// transaction. A failed swap rolls back to the previous set.
func (r *NoosResultRepositoryGORM) ReplaceAll(ctx context.Context, results []*noos.Result) error {
	models := make([]NoosResultModel, len(results))
	for i, result := range results {
		models[i] = resultToModel(result)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&NoosResultModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear previous results: %w", err)
		}
		if len(models) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(models, resultInsertChunk).Error; err != nil {
			return fmt.Errorf("failed to insert results: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace results: %w", err)
	}
	return nil
}

// FindAll retrieves all results ordered by styleCode
func (r *NoosResultRepositoryGORM) FindAll(ctx context.Context) ([]*noos.Result, error) {
	var models []NoosResultModel
	if err := r.db.WithContext(ctx).Order("style_code ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	return modelsToResults(models), nil
}

// FindByRunID retrieves the results tagged with the given run
func (r *NoosResultRepositoryGORM) FindByRunID(ctx context.Context, runID string) ([]*noos.Result, error) {
	var models []NoosResultModel
	err := r.db.WithContext(ctx).
		Where("algorithm_run_id = ?", runID).
		Order("style_code ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find results by run: %w", err)
	}
	return modelsToResults(models), nil
}

// Count returns the number of stored results
func (r *NoosResultRepositoryGORM) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&NoosResultModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}

func resultToModel(result *noos.Result) NoosResultModel {
	return NoosResultModel{
		ID:                   result.ID,
		Category:             result.Category,
		StyleCode:            result.StyleCode,
		StyleROS:             result.StyleROS,
		Label:                string(result.Label),
		StyleRevContribution: result.StyleRevContribution,
		CalculatedDate:       result.CalculatedDate,
		TotalQuantitySold:    result.TotalQuantitySold,
		TotalRevenue:         result.TotalRevenue,
		DaysAvailable:        result.DaysAvailable,
		DaysWithSales:        result.DaysWithSales,
		AvgDiscount:          result.AvgDiscount,
		AlgorithmRunID:       result.AlgorithmRunID,
	}
}

func modelsToResults(models []NoosResultModel) []*noos.Result {
	results := make([]*noos.Result, len(models))
	for i, model := range models {
		results[i] = &noos.Result{
			ID:                   model.ID,
			Category:             model.Category,
			StyleCode:            model.StyleCode,
			StyleROS:             model.StyleROS,
			Label:                noos.Label(model.Label),
			StyleRevContribution: model.StyleRevContribution,
			CalculatedDate:       model.CalculatedDate,
			TotalQuantitySold:    model.TotalQuantitySold,
			TotalRevenue:         model.TotalRevenue,
			DaysAvailable:        model.DaysAvailable,
			DaysWithSales:        model.DaysWithSales,
			AvgDiscount:          model.AvgDiscount,
			AlgorithmRunID:       model.AlgorithmRunID,
		}
	}
	return results
}

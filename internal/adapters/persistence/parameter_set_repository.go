package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/retailcore/noos-go/internal/domain/params"
	"github.com/retailcore/noos-go/internal/domain/shared"
)

// ParameterSetRepositoryGORM implements parameter set persistence. The
// active-set swaps run inside transactions so readers never observe zero
// or two active sets.
type ParameterSetRepositoryGORM struct {
	db    *gorm.DB
	clock shared.Clock
}

// NewParameterSetRepository creates a new GORM-based parameter set
// repository. If clock is nil, uses RealClock.
func NewParameterSetRepository(db *gorm.DB, clock shared.Clock) *ParameterSetRepositoryGORM {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &ParameterSetRepositoryGORM{db: db, clock: clock}
}

// FindActive retrieves the unique active set
func (r *ParameterSetRepositoryGORM) FindActive(ctx context.Context) (*params.ParameterSet, error) {
	var model ParameterSetModel
	result := r.db.WithContext(ctx).Where("is_active = ?", true).First(&model)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, shared.NewNotFoundError("active parameter set", "")
		}
		return nil, fmt.Errorf("failed to find active parameter set: %w", result.Error)
	}
	return modelToParameterSet(&model), nil
}

// FindByName retrieves a set by name
func (r *ParameterSetRepositoryGORM) FindByName(ctx context.Context, name string) (*params.ParameterSet, error) {
	var model ParameterSetModel
	result := r.db.WithContext(ctx).Where("name = ?", name).First(&model)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, shared.NewNotFoundError("parameter set", name)
		}
		return nil, fmt.Errorf("failed to find parameter set: %w", result.Error)
	}
	return modelToParameterSet(&model), nil
}

// ListRecent retrieves sets with the active one first, then most recently
// updated
func (r *ParameterSetRepositoryGORM) ListRecent(ctx context.Context, limit int) ([]*params.ParameterSet, error) {
	var models []ParameterSetModel
	query := r.db.WithContext(ctx).Order("is_active DESC, last_updated DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list parameter sets: %w", err)
	}

	sets := make([]*params.ParameterSet, len(models))
	for i := range models {
		sets[i] = modelToParameterSet(&models[i])
	}
	return sets, nil
}

// CreateActive inserts a new set as active and deactivates the current
// active set in the same transaction
func (r *ParameterSetRepositoryGORM) CreateActive(ctx context.Context, set *params.ParameterSet) (*params.ParameterSet, error) {
	model := parameterSetToModel(set)
	model.ID = 0
	model.IsActive = true
	model.LastUpdated = r.clock.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ParameterSetModel{}).
			Where("name = ?", set.Name).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check name uniqueness: %w", err)
		}
		if count > 0 {
			return shared.NewConflictError(fmt.Sprintf("parameter set %q already exists", set.Name))
		}

		if err := tx.Model(&ParameterSetModel{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate current set: %w", err)
		}
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to insert parameter set: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return modelToParameterSet(model), nil
}

// Update persists field changes to an existing set without touching the
// activity flag
func (r *ParameterSetRepositoryGORM) Update(ctx context.Context, set *params.ParameterSet) (*params.ParameterSet, error) {
	model := parameterSetToModel(set)
	model.LastUpdated = r.clock.Now()

	result := r.db.WithContext(ctx).
		Model(&ParameterSetModel{}).
		Where("id = ?", model.ID).
		Updates(map[string]interface{}{
			"liquidation_threshold":    model.LiquidationThreshold,
			"bestseller_multiplier":    model.BestsellerMultiplier,
			"min_volume_threshold":     model.MinVolumeThreshold,
			"consistency_threshold":    model.ConsistencyThreshold,
			"analysis_start_date":      model.AnalysisStartDate,
			"analysis_end_date":        model.AnalysisEndDate,
			"core_duration_months":     model.CoreDurationMonths,
			"bestseller_duration_days": model.BestsellerDurationDays,
			"last_updated":             model.LastUpdated,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update parameter set: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, shared.NewNotFoundError("parameter set", set.Name)
	}

	return r.FindByName(ctx, set.Name)
}

// Activate deactivates the current active set and activates the named one
// in the same transaction
func (r *ParameterSetRepositoryGORM) Activate(ctx context.Context, name string) (*params.ParameterSet, error) {
	now := r.clock.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&ParameterSetModel{}).
			Where("name = ?", name).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check parameter set existence: %w", err)
		}
		if count == 0 {
			return shared.NewNotFoundError("parameter set", name)
		}

		if err := tx.Model(&ParameterSetModel{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate current set: %w", err)
		}
		if err := tx.Model(&ParameterSetModel{}).
			Where("name = ?", name).
			Updates(map[string]interface{}{
				"is_active":    true,
				"last_updated": now,
			}).Error; err != nil {
			return fmt.Errorf("failed to activate parameter set: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.FindByName(ctx, name)
}

func parameterSetToModel(set *params.ParameterSet) *ParameterSetModel {
	return &ParameterSetModel{
		ID:                     set.ID,
		Name:                   set.Name,
		LiquidationThreshold:   set.LiquidationThreshold,
		BestsellerMultiplier:   set.BestsellerMultiplier,
		MinVolumeThreshold:     set.MinVolumeThreshold,
		ConsistencyThreshold:   set.ConsistencyThreshold,
		AnalysisStartDate:      set.AnalysisStartDate,
		AnalysisEndDate:        set.AnalysisEndDate,
		CoreDurationMonths:     set.CoreDurationMonths,
		BestsellerDurationDays: set.BestsellerDurationDays,
		IsActive:               set.IsActive,
		LastUpdated:            set.LastUpdated,
	}
}

func modelToParameterSet(model *ParameterSetModel) *params.ParameterSet {
	return &params.ParameterSet{
		ID:                     model.ID,
		Name:                   model.Name,
		LiquidationThreshold:   model.LiquidationThreshold,
		BestsellerMultiplier:   model.BestsellerMultiplier,
		MinVolumeThreshold:     model.MinVolumeThreshold,
		ConsistencyThreshold:   model.ConsistencyThreshold,
		AnalysisStartDate:      model.AnalysisStartDate,
		AnalysisEndDate:        model.AnalysisEndDate,
		CoreDurationMonths:     model.CoreDurationMonths,
		BestsellerDurationDays: model.BestsellerDurationDays,
		IsActive:               model.IsActive,
		LastUpdated:            model.LastUpdated,
	}
}

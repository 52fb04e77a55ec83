package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/noos-go/internal/adapters/persistence"
	"github.com/retailcore/noos-go/internal/domain/params"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/test/helpers"
)

func namedSet(name string) *params.ParameterSet {
	set := params.Defaults()
	set.Name = name
	return set
}

func TestParameterSetRepository_FindActiveEmpty(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewParameterSetRepository(db, nil)

	// Act
	_, err := repo.FindActive(context.Background())

	// Assert
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestParameterSetRepository_CreateActiveSwapsActivation(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewParameterSetRepository(db, nil)
	ctx := context.Background()

	first, err := repo.CreateActive(ctx, namedSet("default"))
	require.NoError(t, err)
	require.True(t, first.IsActive)

	// Act - creating a second set moves the active flag
	second, err := repo.CreateActive(ctx, namedSet("aggressive"))

	// Assert
	require.NoError(t, err)
	assert.True(t, second.IsActive)
	assert.NotZero(t, second.ID)

	active, err := repo.FindActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "aggressive", active.Name)

	demoted, err := repo.FindByName(ctx, "default")
	require.NoError(t, err)
	assert.False(t, demoted.IsActive)
}

func TestParameterSetRepository_CreateActiveDuplicateName(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewParameterSetRepository(db, nil)
	ctx := context.Background()

	_, err := repo.CreateActive(ctx, namedSet("default"))
	require.NoError(t, err)

	// Act
	_, err = repo.CreateActive(ctx, namedSet("default"))

	// Assert
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindConflict))

	// The failed create must not have touched the existing activation
	active, err := repo.FindActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "default", active.Name)
}

func TestParameterSetRepository_UpdatePreservesActivation(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewParameterSetRepository(db, nil)
	ctx := context.Background()

	stored, err := repo.CreateActive(ctx, namedSet("default"))
	require.NoError(t, err)

	stored.LiquidationThreshold = 0.40
	stored.IsActive = false // field updates never flip activation

	// Act
	updated, err := repo.Update(ctx, stored)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0.40, updated.LiquidationThreshold)
	assert.True(t, updated.IsActive)
}

func TestParameterSetRepository_UpdateMissingSet(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewParameterSetRepository(db, nil)

	// Act
	_, err := repo.Update(context.Background(), namedSet("ghost"))

	// Assert
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestParameterSetRepository_Activate(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	repo := persistence.NewParameterSetRepository(db, clock)
	ctx := context.Background()

	_, err := repo.CreateActive(ctx, namedSet("default"))
	require.NoError(t, err)
	_, err = repo.CreateActive(ctx, namedSet("aggressive"))
	require.NoError(t, err)

	clock.Advance(time.Hour)

	// Act
	activated, err := repo.Activate(ctx, "default")

	// Assert
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
	assert.WithinDuration(t, clock.Now(), activated.LastUpdated, time.Second)

	// Exactly one active set remains
	sets, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	activeCount := 0
	for _, set := range sets {
		if set.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestParameterSetRepository_ActivateMissingSet(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewParameterSetRepository(db, nil)

	// Act
	_, err := repo.Activate(context.Background(), "ghost")

	// Assert
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestParameterSetRepository_ListRecentActiveFirst(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	clock := shared.NewMockClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	repo := persistence.NewParameterSetRepository(db, clock)
	ctx := context.Background()

	for _, name := range []string{"default", "spring", "aggressive"} {
		_, err := repo.CreateActive(ctx, namedSet(name))
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	// Act
	sets, err := repo.ListRecent(ctx, 2)

	// Assert - the active set leads, then most recently updated, capped at limit
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "aggressive", sets[0].Name)
	assert.True(t, sets[0].IsActive)
	assert.Equal(t, "spring", sets[1].Name)
}

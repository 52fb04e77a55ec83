package params_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailcore/noos-go/internal/domain/params"
)

func TestDefaults(t *testing.T) {
	// Act
	p := params.Defaults()

	// Assert
	assert.Equal(t, params.DefaultSetName, p.Name)
	assert.Equal(t, 0.25, p.LiquidationThreshold)
	assert.Equal(t, 1.20, p.BestsellerMultiplier)
	assert.Equal(t, 25.0, p.MinVolumeThreshold)
	assert.Equal(t, 0.75, p.ConsistencyThreshold)
	assert.Equal(t, 6, p.CoreDurationMonths)
	assert.Equal(t, 90, p.BestsellerDurationDays)
	assert.Empty(t, p.Validate())
}

func TestValidate_RangeViolations(t *testing.T) {
	// Arrange
	p := params.Defaults()
	p.LiquidationThreshold = 1.5
	p.BestsellerMultiplier = 0.5
	p.ConsistencyThreshold = -0.1
	p.CoreDurationMonths = 30
	p.BestsellerDurationDays = 0

	// Act
	problems := p.Validate()

	// Assert
	assert.Len(t, problems, 5)
}

func TestValidate_DateOrdering(t *testing.T) {
	// Arrange
	p := params.Defaults()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.AnalysisStartDate = &start
	p.AnalysisEndDate = &end

	// Act
	problems := p.Validate()

	// Assert
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "analysisStartDate")
}

func TestSanitized_ReplacesInvalidValuesWithDefaults(t *testing.T) {
	// Arrange
	p := params.Defaults()
	p.LiquidationThreshold = -1
	p.MinVolumeThreshold = -5

	// Act
	clean, substitutions := p.Sanitized()

	// Assert
	assert.Equal(t, 0.25, clean.LiquidationThreshold)
	assert.Equal(t, 25.0, clean.MinVolumeThreshold)
	assert.Len(t, substitutions, 2)
	// original untouched
	assert.Equal(t, -1.0, p.LiquidationThreshold)
}

func TestSanitized_ClearsInvertedWindow(t *testing.T) {
	// Arrange
	p := params.Defaults()
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.AnalysisStartDate = &start
	p.AnalysisEndDate = &end

	// Act
	clean, substitutions := p.Sanitized()

	// Assert
	assert.Nil(t, clean.AnalysisStartDate)
	assert.Nil(t, clean.AnalysisEndDate)
	assert.Len(t, substitutions, 1)
}

func TestSanitized_ValidSetUnchanged(t *testing.T) {
	// Arrange
	p := params.Defaults()

	// Act
	clean, substitutions := p.Sanitized()

	// Assert
	assert.Empty(t, substitutions)
	assert.Equal(t, *p, *clean)
}

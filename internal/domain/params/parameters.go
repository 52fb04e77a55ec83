package params

import (
	"fmt"
	"math"
	"time"
)

// DefaultSetName is the name given to the seeded parameter set
const DefaultSetName = "default"

// Declared ranges for numeric fields
const (
	MinLiquidationThreshold = 0.0
	MaxLiquidationThreshold = 1.0
	MinBestsellerMultiplier = 1.0
	MinVolumeFloor          = 0.0
	MinConsistencyThreshold = 0.0
	MaxConsistencyThreshold = 1.0
	MinCoreDurationMonths   = 1
	MaxCoreDurationMonths   = 24
	MinBestsellerDays       = 1
	MaxBestsellerDays       = 365
)

// ParameterSet is a named configuration for the classification algorithm.
// Exactly one set is active at any time; the active set feeds runs unless
// the submission overrides individual fields.
type ParameterSet struct {
	ID                     int64
	Name                   string
	LiquidationThreshold   float64
	BestsellerMultiplier   float64
	MinVolumeThreshold     float64
	ConsistencyThreshold   float64
	AnalysisStartDate      *time.Time
	AnalysisEndDate        *time.Time
	CoreDurationMonths     int
	BestsellerDurationDays int
	IsActive               bool
	LastUpdated            time.Time
}

// Defaults returns the built-in parameter values
func Defaults() *ParameterSet {
	return &ParameterSet{
		Name:                   DefaultSetName,
		LiquidationThreshold:   0.25,
		BestsellerMultiplier:   1.20,
		MinVolumeThreshold:     25.0,
		ConsistencyThreshold:   0.75,
		CoreDurationMonths:     6,
		BestsellerDurationDays: 90,
	}
}

// Validate checks every field against its declared range and returns one
// message per violation. An empty slice means the set is valid.
func (p *ParameterSet) Validate() []string {
	var problems []string

	if p.Name == "" {
		problems = append(problems, "parameterSetName must not be empty")
	}
	if !finite(p.LiquidationThreshold) || p.LiquidationThreshold < MinLiquidationThreshold || p.LiquidationThreshold > MaxLiquidationThreshold {
		problems = append(problems, fmt.Sprintf("liquidationThreshold must be within [%.1f, %.1f]", MinLiquidationThreshold, MaxLiquidationThreshold))
	}
	if !finite(p.BestsellerMultiplier) || p.BestsellerMultiplier < MinBestsellerMultiplier {
		problems = append(problems, fmt.Sprintf("bestsellerMultiplier must be at least %.1f", MinBestsellerMultiplier))
	}
	if !finite(p.MinVolumeThreshold) || p.MinVolumeThreshold < MinVolumeFloor {
		problems = append(problems, "minVolumeThreshold must be non-negative")
	}
	if !finite(p.ConsistencyThreshold) || p.ConsistencyThreshold < MinConsistencyThreshold || p.ConsistencyThreshold > MaxConsistencyThreshold {
		problems = append(problems, fmt.Sprintf("consistencyThreshold must be within [%.1f, %.1f]", MinConsistencyThreshold, MaxConsistencyThreshold))
	}
	if p.CoreDurationMonths < MinCoreDurationMonths || p.CoreDurationMonths > MaxCoreDurationMonths {
		problems = append(problems, fmt.Sprintf("coreDurationMonths must be within [%d, %d]", MinCoreDurationMonths, MaxCoreDurationMonths))
	}
	if p.BestsellerDurationDays < MinBestsellerDays || p.BestsellerDurationDays > MaxBestsellerDays {
		problems = append(problems, fmt.Sprintf("bestsellerDurationDays must be within [%d, %d]", MinBestsellerDays, MaxBestsellerDays))
	}
	if p.AnalysisStartDate != nil && p.AnalysisEndDate != nil && !p.AnalysisStartDate.Before(*p.AnalysisEndDate) {
		problems = append(problems, "analysisStartDate must be before analysisEndDate")
	}

	return problems
}

// Sanitized returns a copy with every out-of-range or non-finite value
// replaced by its default, plus a substitution note per replaced field.
// Runs call this before classifying so a bad stored value can never poison
// a result set; the notes are recorded on the task.
func (p *ParameterSet) Sanitized() (*ParameterSet, []string) {
	out := *p
	defaults := Defaults()
	var substitutions []string

	replace := func(field string, old, def float64) float64 {
		substitutions = append(substitutions, fmt.Sprintf("%s: %v replaced with %v", field, old, def))
		return def
	}

	if !finite(out.LiquidationThreshold) || out.LiquidationThreshold < MinLiquidationThreshold || out.LiquidationThreshold > MaxLiquidationThreshold {
		out.LiquidationThreshold = replace("liquidationThreshold", out.LiquidationThreshold, defaults.LiquidationThreshold)
	}
	if !finite(out.BestsellerMultiplier) || out.BestsellerMultiplier < MinBestsellerMultiplier {
		out.BestsellerMultiplier = replace("bestsellerMultiplier", out.BestsellerMultiplier, defaults.BestsellerMultiplier)
	}
	if !finite(out.MinVolumeThreshold) || out.MinVolumeThreshold < MinVolumeFloor {
		out.MinVolumeThreshold = replace("minVolumeThreshold", out.MinVolumeThreshold, defaults.MinVolumeThreshold)
	}
	if !finite(out.ConsistencyThreshold) || out.ConsistencyThreshold < MinConsistencyThreshold || out.ConsistencyThreshold > MaxConsistencyThreshold {
		out.ConsistencyThreshold = replace("consistencyThreshold", out.ConsistencyThreshold, defaults.ConsistencyThreshold)
	}
	if out.CoreDurationMonths < MinCoreDurationMonths || out.CoreDurationMonths > MaxCoreDurationMonths {
		substitutions = append(substitutions, fmt.Sprintf("coreDurationMonths: %d replaced with %d", out.CoreDurationMonths, defaults.CoreDurationMonths))
		out.CoreDurationMonths = defaults.CoreDurationMonths
	}
	if out.BestsellerDurationDays < MinBestsellerDays || out.BestsellerDurationDays > MaxBestsellerDays {
		substitutions = append(substitutions, fmt.Sprintf("bestsellerDurationDays: %d replaced with %d", out.BestsellerDurationDays, defaults.BestsellerDurationDays))
		out.BestsellerDurationDays = defaults.BestsellerDurationDays
	}
	if out.AnalysisStartDate != nil && out.AnalysisEndDate != nil && !out.AnalysisStartDate.Before(*out.AnalysisEndDate) {
		substitutions = append(substitutions, "analysis window: start not before end, window cleared")
		out.AnalysisStartDate = nil
		out.AnalysisEndDate = nil
	}

	return &out, substitutions
}

// HasWindow reports whether both analysis dates are set
func (p *ParameterSet) HasWindow() bool {
	return p.AnalysisStartDate != nil && p.AnalysisEndDate != nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

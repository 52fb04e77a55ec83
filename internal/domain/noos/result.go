package noos

import (
	"fmt"
	"time"
)

// Label is the classification assigned to a style
type Label string

const (
	LabelCore       Label = "core"
	LabelBestseller Label = "bestseller"
	LabelFashion    Label = "fashion"
)

// Result is the classification outcome for one style in one run.
// Per algorithmRunId each styleCode appears at most once.
type Result struct {
	ID                   int64
	Category             string
	StyleCode            string
	StyleROS             float64
	Label                Label
	StyleRevContribution float64
	CalculatedDate       time.Time
	TotalQuantitySold    int
	TotalRevenue         float64
	DaysAvailable        int
	DaysWithSales        int
	AvgDiscount          float64
	AlgorithmRunID       string
}

// RunSummary collects the observable counters of one classification run.
// It is recorded on the task and feeds the analytics report.
type RunSummary struct {
	TotalSales           int
	DiscardedLiquidation int
	UnresolvedSales      int
	StylesProcessed      int
	CoreCount            int
	BestsellerCount      int
	FashionCount         int
}

// String renders the summary as the one-line form stored in task parameters
func (s RunSummary) String() string {
	return fmt.Sprintf("styles=%d core=%d bestseller=%d fashion=%d discarded=%d unresolved=%d",
		s.StylesProcessed, s.CoreCount, s.BestsellerCount, s.FashionCount,
		s.DiscardedLiquidation, s.UnresolvedSales)
}

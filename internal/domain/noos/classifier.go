package noos

import (
	"sort"
	"time"

	"github.com/retailcore/noos-go/internal/domain/params"
)

// SaleRecord is the classifier's view of one sale after window filtering
type SaleRecord struct {
	SKUID    int64
	Date     time.Time
	Quantity int
	Discount float64
	Revenue  float64
}

// StyleInfo carries the style attributes the classifier needs
type StyleInfo struct {
	StyleCode string
	Category  string
	MRP       float64
}

// JoinedSale is a sale resolved through SKU to its style
type JoinedSale struct {
	StyleCode string
	Category  string
	MRP       float64
	Date      time.Time
	Quantity  int
	Discount  float64
	Revenue   float64
}

// StyleAggregate accumulates the per-style metrics of stage 4, extended by
// the revenue contribution of stage 5
type StyleAggregate struct {
	StyleCode         string
	Category          string
	MRP               float64
	TotalQuantity     int
	TotalRevenue      float64
	DistinctSalesDays int
	AvgDiscount       float64
	DaysAvailable     int
	StyleROS          float64
	RevContribution   float64
}

// CategoryBenchmark holds the stage-5 reference values for one category
type CategoryBenchmark struct {
	Category   string
	AvgROS     float64
	Revenue    float64
	StyleCount int
}

// Classifier implements the classification pipeline stages as pure
// functions over in-memory data.
//
// This is a domain service with no infrastructure dependencies (no database,
// no files). All methods are stateless and deterministic: identical inputs
// produce identical outputs, with result ordering fixed by styleCode.
// The caller drives the stages so it can publish progress and check
// cancellation at each boundary.
type Classifier struct{}

// NewClassifier creates a classifier
func NewClassifier() *Classifier {
	return &Classifier{}
}

// CleanLiquidation removes heavily discounted sales (stage 2).
//
// For each sale, effectiveDiscountRate = discount / (revenue + discount),
// treating a zero denominator as rate 0. Sales whose rate exceeds the
// liquidation threshold are discarded. A threshold of 0 disables cleanup.
// Returns the surviving sales and the discarded count.
func (c *Classifier) CleanLiquidation(sales []SaleRecord, liquidationThreshold float64) ([]SaleRecord, int) {
	if liquidationThreshold == 0 {
		return sales, 0
	}

	kept := make([]SaleRecord, 0, len(sales))
	discarded := 0
	for _, s := range sales {
		if effectiveDiscountRate(s.Discount, s.Revenue) > liquidationThreshold {
			discarded++
			continue
		}
		kept = append(kept, s)
	}
	return kept, discarded
}

func effectiveDiscountRate(discount, revenue float64) float64 {
	denom := revenue + discount
	if denom == 0 {
		return 0
	}
	return discount / denom
}

// Join resolves each sale through its SKU to a style (stage 3).
//
// Sales whose SKU or style cannot be resolved are dropped and counted; the
// count is observed-only and never fails the run.
func (c *Classifier) Join(sales []SaleRecord, skuToStyle map[int64]string, styles map[string]StyleInfo) ([]JoinedSale, int) {
	joined := make([]JoinedSale, 0, len(sales))
	unresolved := 0

	for _, s := range sales {
		styleCode, ok := skuToStyle[s.SKUID]
		if !ok {
			unresolved++
			continue
		}
		info, ok := styles[styleCode]
		if !ok {
			unresolved++
			continue
		}
		joined = append(joined, JoinedSale{
			StyleCode: info.StyleCode,
			Category:  info.Category,
			MRP:       info.MRP,
			Date:      s.Date,
			Quantity:  s.Quantity,
			Discount:  s.Discount,
			Revenue:   s.Revenue,
		})
	}
	return joined, unresolved
}

// Aggregate accumulates per-style metrics (stage 4).
//
// For each style with at least one surviving sale: totalQuantity,
// totalRevenue, distinctSalesDays, and the quantity-weighted mean discount.
// daysAvailable is the analysis window span when both dates are set,
// otherwise the span of the style's observed sale dates. styleROS is
// totalQuantity / daysAvailable. The returned slice is sorted by styleCode
// so later stages accumulate floats in a fixed order.
func (c *Classifier) Aggregate(joined []JoinedSale, windowStart, windowEnd *time.Time) []StyleAggregate {
	type accumulator struct {
		info             StyleInfo
		totalQuantity    int
		totalRevenue     float64
		weightedDisc     float64
		days             map[string]struct{}
		minDate, maxDate time.Time
	}

	accs := make(map[string]*accumulator)
	for _, s := range joined {
		acc, ok := accs[s.StyleCode]
		if !ok {
			acc = &accumulator{
				info:    StyleInfo{StyleCode: s.StyleCode, Category: s.Category, MRP: s.MRP},
				days:    make(map[string]struct{}),
				minDate: s.Date,
				maxDate: s.Date,
			}
			accs[s.StyleCode] = acc
		}
		acc.totalQuantity += s.Quantity
		acc.totalRevenue += s.Revenue
		acc.weightedDisc += s.Discount * float64(s.Quantity)
		acc.days[s.Date.Format("2006-01-02")] = struct{}{}
		if s.Date.Before(acc.minDate) {
			acc.minDate = s.Date
		}
		if s.Date.After(acc.maxDate) {
			acc.maxDate = s.Date
		}
	}

	windowDays := 0
	if windowStart != nil && windowEnd != nil {
		windowDays = daySpan(*windowStart, *windowEnd)
	}

	out := make([]StyleAggregate, 0, len(accs))
	for _, acc := range accs {
		daysAvailable := windowDays
		if daysAvailable == 0 {
			daysAvailable = daySpan(acc.minDate, acc.maxDate)
		}

		avgDiscount := 0.0
		if acc.totalQuantity > 0 {
			avgDiscount = acc.weightedDisc / float64(acc.totalQuantity)
		}

		out = append(out, StyleAggregate{
			StyleCode:         acc.info.StyleCode,
			Category:          acc.info.Category,
			MRP:               acc.info.MRP,
			TotalQuantity:     acc.totalQuantity,
			TotalRevenue:      acc.totalRevenue,
			DistinctSalesDays: len(acc.days),
			AvgDiscount:       avgDiscount,
			DaysAvailable:     daysAvailable,
			StyleROS:          float64(acc.totalQuantity) / float64(daysAvailable),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StyleCode < out[j].StyleCode })
	return out
}

// daySpan counts the inclusive number of calendar days between two dates
func daySpan(start, end time.Time) int {
	span := int(end.Sub(start).Hours()/24) + 1
	if span < 1 {
		span = 1
	}
	return span
}

// Benchmark computes category reference values and fills each style's
// revenue contribution (stage 5).
//
// categoryAvgROS is the mean styleROS across the category's styles;
// styleRevContribution is 100 × totalRevenue / categoryRevenue, or 0 when
// the category revenue is 0. The aggregates slice is updated in place.
func (c *Classifier) Benchmark(aggregates []StyleAggregate) map[string]CategoryBenchmark {
	benchmarks := make(map[string]CategoryBenchmark)

	for _, agg := range aggregates {
		b := benchmarks[agg.Category]
		b.Category = agg.Category
		b.AvgROS += agg.StyleROS
		b.Revenue += agg.TotalRevenue
		b.StyleCount++
		benchmarks[agg.Category] = b
	}
	for category, b := range benchmarks {
		if b.StyleCount > 0 {
			b.AvgROS /= float64(b.StyleCount)
		}
		benchmarks[category] = b
	}

	for i := range aggregates {
		b := benchmarks[aggregates[i].Category]
		if b.Revenue > 0 {
			aggregates[i].RevContribution = 100 * aggregates[i].TotalRevenue / b.Revenue
		} else {
			aggregates[i].RevContribution = 0
		}
	}
	return benchmarks
}

// Classify assigns every style exactly one label (stage 6), deciding in
// strict order:
//
//  1. core — consistent presence (distinctSalesDays/daysAvailable at or
//     above the consistency threshold), sufficient volume, and a low
//     average discount (at most liquidationThreshold × the style's MRP)
//  2. bestseller — styleROS at least bestsellerMultiplier × the category
//     average, with sufficient volume
//  3. fashion — everything else
//
// Ties favor the earlier rule. Results come back sorted by styleCode.
func (c *Classifier) Classify(aggregates []StyleAggregate, benchmarks map[string]CategoryBenchmark, p *params.ParameterSet) []Result {
	results := make([]Result, 0, len(aggregates))

	for _, agg := range aggregates {
		label := LabelFashion

		consistency := float64(agg.DistinctSalesDays) / float64(agg.DaysAvailable)
		hasVolume := float64(agg.TotalQuantity) >= p.MinVolumeThreshold

		switch {
		case consistency >= p.ConsistencyThreshold && hasVolume && agg.AvgDiscount <= p.LiquidationThreshold*agg.MRP:
			label = LabelCore
		case agg.StyleROS >= p.BestsellerMultiplier*benchmarks[agg.Category].AvgROS && hasVolume:
			label = LabelBestseller
		}

		results = append(results, Result{
			Category:             agg.Category,
			StyleCode:            agg.StyleCode,
			StyleROS:             agg.StyleROS,
			Label:                label,
			StyleRevContribution: agg.RevContribution,
			TotalQuantitySold:    agg.TotalQuantity,
			TotalRevenue:         agg.TotalRevenue,
			DaysAvailable:        agg.DaysAvailable,
			DaysWithSales:        agg.DistinctSalesDays,
			AvgDiscount:          agg.AvgDiscount,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].StyleCode < results[j].StyleCode })
	return results
}

// Summarize tallies the label distribution for the run summary
func (c *Classifier) Summarize(results []Result) RunSummary {
	summary := RunSummary{StylesProcessed: len(results)}
	for _, r := range results {
		switch r.Label {
		case LabelCore:
			summary.CoreCount++
		case LabelBestseller:
			summary.BestsellerCount++
		default:
			summary.FashionCount++
		}
	}
	return summary
}

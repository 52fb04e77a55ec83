package algo

import (
	"context"
	"fmt"
	"time"

	"github.com/retailcore/noos-go/internal/application/logging"
	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/domain/catalog"
	"github.com/retailcore/noos-go/internal/domain/noos"
	"github.com/retailcore/noos-go/internal/domain/params"
	"github.com/retailcore/noos-go/internal/domain/sales"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
)

// RunNoosCommand executes one classification run. Overrides replace
// individual fields of the active parameter set for this run only.
type RunNoosCommand struct {
	TaskID    string
	Overrides map[string]interface{}
	Runtime   task.Runtime
}

// RunNoosHandler drives the classification stages in order, publishing the
// stage checkpoints and checking cancellation at each boundary. The result
// store keeps the previous run until the final persist commits.
type RunNoosHandler struct {
	params     params.Repository
	sales      sales.Repository
	skus       catalog.SKURepository
	styles     catalog.StyleRepository
	results    noos.ResultRepository
	classifier *noos.Classifier
	clock      shared.Clock
}

// NewRunNoosHandler creates a new classification run handler
func NewRunNoosHandler(
	paramsRepo params.Repository,
	salesRepo sales.Repository,
	skus catalog.SKURepository,
	styles catalog.StyleRepository,
	results noos.ResultRepository,
	clock shared.Clock,
) *RunNoosHandler {
	return &RunNoosHandler{
		params:     paramsRepo,
		sales:      salesRepo,
		skus:       skus,
		styles:     styles,
		results:    results,
		classifier: noos.NewClassifier(),
		clock:      clock,
	}
}

// Handle executes the classification run
func (h *RunNoosHandler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	cmd, ok := request.(*RunNoosCommand)
	if !ok {
		return nil, fmt.Errorf("invalid request type")
	}
	rt := cmd.Runtime
	if rt == nil {
		rt = task.NopRuntime{ID: cmd.TaskID}
	}
	logger := logging.FromContext(ctx)

	p, substitutions, err := h.runParameters(ctx, cmd.Overrides)
	if err != nil {
		return nil, err
	}
	for _, s := range substitutions {
		logger.Logf(task.LogLevelWarn, "parameter substituted: %s", s)
	}

	// Stage 1: load the analysis window. A half-set window does not bound
	// the run: unless both dates are present, every sale is selected.
	if err := rt.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	var windowStart, windowEnd *time.Time
	if p.HasWindow() {
		windowStart, windowEnd = p.AnalysisStartDate, p.AnalysisEndDate
	}
	window, err := h.sales.FindByDateRange(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales: %w", err)
	}
	if len(window) == 0 {
		return nil, shared.NewNoDataError("no sales found in the analysis window")
	}
	records := toRecords(window)
	rt.Progress(ctx, 10, fmt.Sprintf("Loaded %d sales", len(records)), len(records))

	// Stage 2: liquidation cleanup
	if err := rt.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	kept, discarded := h.classifier.CleanLiquidation(records, p.LiquidationThreshold)
	rt.Progress(ctx, 25, fmt.Sprintf("Discarded %d liquidation sales", discarded), len(records))
	logger.Logf(task.LogLevelInfo, "liquidation cleanup discarded %d of %d sales", discarded, len(records))

	// Stage 3: resolve sales to styles
	if err := rt.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	skuToStyle, styleInfo, err := h.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	joined, unresolved := h.classifier.Join(kept, skuToStyle, styleInfo)
	rt.Progress(ctx, 40, fmt.Sprintf("Joined %d sales to styles", len(joined)), len(records))
	if unresolved > 0 {
		logger.Logf(task.LogLevelWarn, "%d sales could not be resolved to a style", unresolved)
	}

	// Stage 4: per-style aggregation
	if err := rt.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	aggregates := h.classifier.Aggregate(joined, windowStart, windowEnd)
	rt.Progress(ctx, 65, fmt.Sprintf("Aggregated %d styles", len(aggregates)), len(records))

	// Stage 5: category benchmarks
	if err := rt.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	benchmarks := h.classifier.Benchmark(aggregates)
	rt.Progress(ctx, 80, fmt.Sprintf("Benchmarked %d categories", len(benchmarks)), len(records))

	// Stage 6: classification
	if err := rt.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	classified := h.classifier.Classify(aggregates, benchmarks, p)
	rt.Progress(ctx, 92, fmt.Sprintf("Classified %d styles", len(classified)), len(records))

	// Stage 7: swap in the new result set
	if err := rt.CheckCancelled(ctx); err != nil {
		return nil, err
	}
	now := h.clock.Now()
	stamped := make([]*noos.Result, len(classified))
	for i := range classified {
		r := classified[i]
		r.AlgorithmRunID = cmd.TaskID
		r.CalculatedDate = now
		stamped[i] = &r
	}
	if err := h.results.ReplaceAll(ctx, stamped); err != nil {
		return nil, fmt.Errorf("failed to persist results: %w", err)
	}

	summary := h.classifier.Summarize(classified)
	summary.TotalSales = len(records)
	summary.DiscardedLiquidation = discarded
	summary.UnresolvedSales = unresolved
	rt.Progress(ctx, 100, fmt.Sprintf("Persisted %d results", len(stamped)), len(records))
	logger.Logf(task.LogLevelInfo, "classification run finished: %s", summary)

	return &task.ExecutionResult{
		TotalRecords:     len(records),
		ProcessedRecords: len(records),
		Parameters:       runReport(p, summary, substitutions),
		FinalMessage:     summary.String(),
	}, nil
}

// runParameters resolves the effective parameter set for this run: the
// active set (built-in defaults when none is stored), with submission
// overrides applied, then sanitized.
func (h *RunNoosHandler) runParameters(ctx context.Context, overrides map[string]interface{}) (*params.ParameterSet, []string, error) {
	base, err := h.params.FindActive(ctx)
	if err != nil {
		if shared.IsKind(err, shared.KindNotFound) {
			base = params.Defaults()
		} else {
			return nil, nil, fmt.Errorf("failed to load active parameters: %w", err)
		}
	}

	p := *base
	for key, value := range overrides {
		if err := applyOverride(&p, key, value); err != nil {
			return nil, nil, err
		}
	}

	sanitized, substitutions := p.Sanitized()
	return sanitized, substitutions, nil
}

// applyOverride sets one parameter field from a JSON-decoded value.
// Numbers arrive as float64, dates as YYYY-MM-DD strings.
func applyOverride(p *params.ParameterSet, key string, value interface{}) error {
	switch key {
	case "parameterSetName":
		s, ok := value.(string)
		if !ok {
			return shared.Errorf(shared.KindValidation, "override %s must be a string", key)
		}
		p.Name = s
	case "liquidationThreshold":
		return setFloat(&p.LiquidationThreshold, key, value)
	case "bestsellerMultiplier":
		return setFloat(&p.BestsellerMultiplier, key, value)
	case "minVolumeThreshold":
		return setFloat(&p.MinVolumeThreshold, key, value)
	case "consistencyThreshold":
		return setFloat(&p.ConsistencyThreshold, key, value)
	case "coreDurationMonths":
		return setInt(&p.CoreDurationMonths, key, value)
	case "bestsellerDurationDays":
		return setInt(&p.BestsellerDurationDays, key, value)
	case "analysisStartDate":
		return setDate(&p.AnalysisStartDate, key, value)
	case "analysisEndDate":
		return setDate(&p.AnalysisEndDate, key, value)
	default:
		return shared.Errorf(shared.KindValidation, "unknown parameter override %q", key)
	}
	return nil
}

func setFloat(dst *float64, key string, value interface{}) error {
	f, ok := value.(float64)
	if !ok {
		return shared.Errorf(shared.KindValidation, "override %s must be a number", key)
	}
	*dst = f
	return nil
}

func setInt(dst *int, key string, value interface{}) error {
	f, ok := value.(float64)
	if !ok {
		return shared.Errorf(shared.KindValidation, "override %s must be a number", key)
	}
	*dst = int(f)
	return nil
}

func setDate(dst **time.Time, key string, value interface{}) error {
	if value == nil {
		*dst = nil
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return shared.Errorf(shared.KindValidation, "override %s must be a YYYY-MM-DD string", key)
	}
	if s == "" {
		*dst = nil
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return shared.Errorf(shared.KindValidation, "override %s must be a YYYY-MM-DD string", key)
	}
	*dst = &t
	return nil
}

func (h *RunNoosHandler) loadCatalog(ctx context.Context) (map[int64]string, map[string]noos.StyleInfo, error) {
	skus, err := h.skus.FindAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load SKUs: %w", err)
	}
	skuToStyle := make(map[int64]string, len(skus))
	for _, s := range skus {
		skuToStyle[s.ID] = s.StyleCode
	}

	styles, err := h.styles.FindAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load styles: %w", err)
	}
	styleInfo := make(map[string]noos.StyleInfo, len(styles))
	for _, s := range styles {
		styleInfo[s.StyleCode] = noos.StyleInfo{StyleCode: s.StyleCode, Category: s.Category, MRP: s.MRP}
	}
	return skuToStyle, styleInfo, nil
}

func toRecords(window []*sales.Sale) []noos.SaleRecord {
	records := make([]noos.SaleRecord, len(window))
	for i, s := range window {
		records[i] = noos.SaleRecord{
			SKUID:    s.SKUID,
			Date:     s.Date,
			Quantity: s.Quantity,
			Discount: s.Discount,
			Revenue:  s.Revenue,
		}
	}
	return records
}

// runReport builds the parameter map recorded on the task: the counts
// summary, the effective parameter values, and any sanitizer substitutions
func runReport(p *params.ParameterSet, summary noos.RunSummary, substitutions []string) map[string]interface{} {
	report := map[string]interface{}{
		"summary":              summary.String(),
		"totalStylesProcessed": summary.StylesProcessed,
		"coreStyles":           summary.CoreCount,
		"bestsellerStyles":     summary.BestsellerCount,
		"fashionStyles":        summary.FashionCount,
		"discardedLiquidation": summary.DiscardedLiquidation,
		"unresolvedSales":      summary.UnresolvedSales,
		"parameterSetName":     p.Name,
		"parameters":           parameterValues(p),
	}
	if len(substitutions) > 0 {
		report["substitutions"] = substitutions
	}
	return report
}

func parameterValues(p *params.ParameterSet) map[string]interface{} {
	values := map[string]interface{}{
		"liquidationThreshold":   p.LiquidationThreshold,
		"bestsellerMultiplier":   p.BestsellerMultiplier,
		"minVolumeThreshold":     p.MinVolumeThreshold,
		"consistencyThreshold":   p.ConsistencyThreshold,
		"coreDurationMonths":     p.CoreDurationMonths,
		"bestsellerDurationDays": p.BestsellerDurationDays,
	}
	if p.AnalysisStartDate != nil {
		values["analysisStartDate"] = p.AnalysisStartDate.Format("2006-01-02")
	}
	if p.AnalysisEndDate != nil {
		values["analysisEndDate"] = p.AnalysisEndDate.Format("2006-01-02")
	}
	return values
}

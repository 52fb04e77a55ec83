package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/retailcore/noos-go/internal/application/mediator"
	"github.com/retailcore/noos-go/internal/domain/catalog"
	"github.com/retailcore/noos-go/internal/domain/ingest"
	"github.com/retailcore/noos-go/internal/domain/sales"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
)

// Dashboard thresholds and vocabularies. The status strings are part of
// the wire contract and rendered verbatim by clients.
const (
	limitedDataBelow = 1_000
	richDataFrom     = 100_000

	salesStatusNone    = "No data available"
	salesStatusLimited = "Limited data"
	salesStatusGood    = "Good data volume"
	salesStatusRich    = "Rich data"

	masterStatusNone     = "Setup required"
	masterStatusPartial  = "Partial setup"
	masterStatusComplete = "Complete setup"

	processingIdle    = "System idle"
	processingRunning = "Running"
	processingBacklog = "Backlog"

	activityActive = "Active"
	activityIdle   = "Inactive"

	recentWindow      = 7 * 24 * time.Hour
	healthReportSince = 30 * 24 * time.Hour
)

// GetDashboardQuery computes the dashboard tiles
type GetDashboardQuery struct{}

// DashboardResponse carries one value per dashboard tile
type DashboardResponse struct {
	TotalSalesRecords    int64
	SalesDataStatus      string
	TotalSkus            int64
	TotalStores          int64
	TotalStyles          int64
	MasterDataStatus     string
	RecentUploads        int64
	UploadSuccessRate    float64
	RecentActivityStatus string
	ActiveTasks          int64
	PendingTasks         int64
	ProcessingStatus     string
}

// GetFileStatusQuery reports per-kind data presence and the latest upload
type GetFileStatusQuery struct{}

// FileStatus describes one kind's stored data and its most recent upload
type FileStatus struct {
	Exists             bool
	Count              int64
	Processing         bool
	Failed             bool
	ProgressPercentage float64
	ProgressMessage    string
	ErrorFiles         map[string]string
}

// FileStatusResponse maps upload kinds to their status
type FileStatusResponse struct {
	Files map[string]FileStatus
}

// GetNoosReportQuery lists past classification runs (report 1)
type GetNoosReportQuery struct{}

// NoosRunReport is one classification run's analytics row
type NoosRunReport struct {
	ExecutionDate        time.Time
	AlgorithmLabel       string
	ExecutionStatus      task.Status
	TotalStylesProcessed int
	CoreStyles           int
	BestsellerStyles     int
	FashionStyles        int
	ExecutionTimeMinutes float64
	Parameters           map[string]interface{}
}

// NoosReportResponse carries report 1 rows, newest first
type NoosReportResponse struct {
	Runs []NoosRunReport
}

// GetHealthReportQuery aggregates task executions per day and type (report 2)
type GetHealthReportQuery struct{}

// HealthReportRow is one day's execution aggregate for one task type
type HealthReportRow struct {
	Date                 string
	TaskType             task.Type
	TotalTasks           int64
	SuccessfulTasks      int64
	FailedTasks          int64
	SuccessRate          float64
	AverageExecutionTime float64
	SystemStatus         string
}

// HealthReportResponse carries report 2 rows, newest day first
type HealthReportResponse struct {
	Rows []HealthReportRow
}

// Handler serves the read-side reporting queries. They compose counts from
// the entity repositories and task aggregates; nothing here mutates state.
type Handler struct {
	styles catalog.StyleRepository
	stores catalog.StoreRepository
	skus   catalog.SKURepository
	sales  sales.Repository
	tasks  task.Repository
	clock  shared.Clock
}

// NewHandler creates the reporting query handler
func NewHandler(
	styles catalog.StyleRepository,
	stores catalog.StoreRepository,
	skus catalog.SKURepository,
	salesRepo sales.Repository,
	tasks task.Repository,
	clock shared.Clock,
) *Handler {
	return &Handler{
		styles: styles,
		stores: stores,
		skus:   skus,
		sales:  salesRepo,
		tasks:  tasks,
		clock:  clock,
	}
}

// Handle dispatches on the query type
func (h *Handler) Handle(ctx context.Context, request mediator.Request) (mediator.Response, error) {
	switch request.(type) {
	case *GetDashboardQuery:
		return h.dashboard(ctx)
	case *GetFileStatusQuery:
		return h.fileStatus(ctx)
	case *GetNoosReportQuery:
		return h.noosReport(ctx)
	case *GetHealthReportQuery:
		return h.healthReport(ctx)
	}
	return nil, fmt.Errorf("invalid request type")
}

func (h *Handler) dashboard(ctx context.Context) (*DashboardResponse, error) {
	resp := &DashboardResponse{}

	var err error
	if resp.TotalStyles, err = h.styles.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count styles: %w", err)
	}
	if resp.TotalStores, err = h.stores.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count stores: %w", err)
	}
	if resp.TotalSkus, err = h.skus.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count SKUs: %w", err)
	}
	if resp.TotalSalesRecords, err = h.sales.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count sales: %w", err)
	}

	resp.SalesDataStatus = salesDataStatus(resp.TotalSalesRecords)
	resp.MasterDataStatus = masterDataStatus(resp.TotalStyles, resp.TotalStores, resp.TotalSkus)

	current, err := h.tasks.CountByStatusSince(ctx, "", time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	resp.ActiveTasks = current[task.StatusRunning]
	resp.PendingTasks = current[task.StatusPending]
	switch {
	case resp.ActiveTasks > 0:
		resp.ProcessingStatus = processingRunning
	case resp.PendingTasks > 0:
		resp.ProcessingStatus = processingBacklog
	default:
		resp.ProcessingStatus = processingIdle
	}

	recent, err := h.tasks.CountByStatusSince(ctx, task.CategoryUpload, h.clock.Now().Add(-recentWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent uploads: %w", err)
	}
	for _, n := range recent {
		resp.RecentUploads += n
	}
	terminal := recent[task.StatusCompleted] + recent[task.StatusFailed] + recent[task.StatusCancelled]
	if terminal > 0 {
		resp.UploadSuccessRate = float64(recent[task.StatusCompleted]) / float64(terminal)
	}
	if resp.RecentUploads > 0 {
		resp.RecentActivityStatus = activityActive
	} else {
		resp.RecentActivityStatus = activityIdle
	}
	return resp, nil
}

func salesDataStatus(count int64) string {
	switch {
	case count == 0:
		return salesStatusNone
	case count < limitedDataBelow:
		return salesStatusLimited
	case count < richDataFrom:
		return salesStatusGood
	default:
		return salesStatusRich
	}
}

func masterDataStatus(styles, stores, skus int64) string {
	switch {
	case styles > 0 && stores > 0 && skus > 0:
		return masterStatusComplete
	case styles > 0 || stores > 0 || skus > 0:
		return masterStatusPartial
	default:
		return masterStatusNone
	}
}

func (h *Handler) fileStatus(ctx context.Context) (*FileStatusResponse, error) {
	counts := map[ingest.Kind]func(context.Context) (int64, error){
		ingest.KindStyles: h.styles.Count,
		ingest.KindStores: h.stores.Count,
		ingest.KindSkus:   h.skus.Count,
		ingest.KindSales:  h.sales.Count,
	}

	files := make(map[string]FileStatus, len(counts))
	for _, kind := range ingest.AllKinds() {
		count, err := counts[kind](ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", kind, err)
		}
		status := FileStatus{Exists: count > 0, Count: count}

		uploadType, _ := task.UploadTypeFor(string(kind))
		latest, err := h.tasks.LatestByType(ctx, uploadType)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest %s upload: %w", kind, err)
		}
		if latest != nil {
			switch latest.Status() {
			case task.StatusPending, task.StatusRunning:
				status.Processing = true
				status.ProgressPercentage = latest.ProgressPercentage()
				status.ProgressMessage = latest.ProgressMessage()
			case task.StatusFailed:
				status.Failed = true
				status.ErrorFiles = latest.ErrorFiles()
			}
		}
		files[string(kind)] = status
	}
	return &FileStatusResponse{Files: files}, nil
}

func (h *Handler) noosReport(ctx context.Context) (*NoosReportResponse, error) {
	runs, err := h.tasks.ListByType(ctx, task.TypeAlgorithmRun, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to list classification runs: %w", err)
	}

	rows := make([]NoosRunReport, 0, len(runs))
	for _, t := range runs {
		p := t.Parameters()
		row := NoosRunReport{
			ExecutionDate:        t.CreatedDate(),
			AlgorithmLabel:       stringParam(p, "parameterSetName"),
			ExecutionStatus:      t.Status(),
			TotalStylesProcessed: intParam(p, "totalStylesProcessed"),
			CoreStyles:           intParam(p, "coreStyles"),
			BestsellerStyles:     intParam(p, "bestsellerStyles"),
			FashionStyles:        intParam(p, "fashionStyles"),
			ExecutionTimeMinutes: t.RuntimeDuration().Minutes(),
		}
		if values, ok := p["parameters"].(map[string]interface{}); ok {
			row.Parameters = values
		}
		rows = append(rows, row)
	}
	return &NoosReportResponse{Runs: rows}, nil
}

func (h *Handler) healthReport(ctx context.Context) (*HealthReportResponse, error) {
	stats, err := h.tasks.DailyStats(ctx, h.clock.Now().Add(-healthReportSince))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate task stats: %w", err)
	}

	rows := make([]HealthReportRow, 0, len(stats))
	for _, s := range stats {
		rate := 0.0
		if s.TotalTasks > 0 {
			rate = float64(s.SuccessfulTasks) / float64(s.TotalTasks)
		}
		rows = append(rows, HealthReportRow{
			Date:                 s.Date,
			TaskType:             s.TaskType,
			TotalTasks:           s.TotalTasks,
			SuccessfulTasks:      s.SuccessfulTasks,
			FailedTasks:          s.FailedTasks,
			SuccessRate:          rate,
			AverageExecutionTime: s.AvgRuntimeSecs / 60,
			SystemStatus:         systemStatus(rate),
		})
	}
	return &HealthReportResponse{Rows: rows}, nil
}

// systemStatus grades a day's success rate
func systemStatus(rate float64) string {
	switch {
	case rate >= 0.9:
		return "Healthy"
	case rate >= 0.5:
		return "Degraded"
	default:
		return "Critical"
	}
}

// Task parameters round-trip through JSON, so numbers read back as float64

func intParam(p map[string]interface{}, key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func stringParam(p map[string]interface{}, key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/retailcore/noos-go/internal/application/admin"
	"github.com/retailcore/noos-go/internal/application/reports"
)

// noosReportRowDTO is one classification run in report 1
type noosReportRowDTO struct {
	ExecutionDate        time.Time              `json:"executionDate"`
	AlgorithmLabel       string                 `json:"algorithmLabel"`
	ExecutionStatus      string                 `json:"executionStatus"`
	TotalStylesProcessed int                    `json:"totalStylesProcessed"`
	CoreStyles           int                    `json:"coreStyles"`
	BestsellerStyles     int                    `json:"bestsellerStyles"`
	FashionStyles        int                    `json:"fashionStyles"`
	ExecutionTimeMinutes float64                `json:"executionTimeMinutes"`
	Parameters           map[string]interface{} `json:"parameters,omitempty"`
}

func (s *Server) handleNoosReport(w http.ResponseWriter, r *http.Request) {
	response, err := s.mediator.Send(r.Context(), &reports.GetNoosReportQuery{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, ok := response.(*reports.NoosReportResponse)
	if !ok {
		s.writeError(w, r, fmt.Errorf("unexpected response type"))
		return
	}

	rows := make([]noosReportRowDTO, 0, len(report.Runs))
	for _, run := range report.Runs {
		rows = append(rows, noosReportRowDTO{
			ExecutionDate:        run.ExecutionDate,
			AlgorithmLabel:       run.AlgorithmLabel,
			ExecutionStatus:      string(run.ExecutionStatus),
			TotalStylesProcessed: run.TotalStylesProcessed,
			CoreStyles:           run.CoreStyles,
			BestsellerStyles:     run.BestsellerStyles,
			FashionStyles:        run.FashionStyles,
			ExecutionTimeMinutes: run.ExecutionTimeMinutes,
			Parameters:           run.Parameters,
		})
	}
	s.writeJSON(w, http.StatusOK, rows)
}

// healthReportRowDTO is one day-and-type aggregate in report 2
type healthReportRowDTO struct {
	Date                 string  `json:"date"`
	TaskType             string  `json:"taskType"`
	TotalTasks           int64   `json:"totalTasks"`
	SuccessfulTasks      int64   `json:"successfulTasks"`
	FailedTasks          int64   `json:"failedTasks"`
	SuccessRate          float64 `json:"successRate"`
	AverageExecutionTime float64 `json:"averageExecutionTime"`
	SystemStatus         string  `json:"systemStatus"`
}

func (s *Server) handleHealthReport(w http.ResponseWriter, r *http.Request) {
	response, err := s.mediator.Send(r.Context(), &reports.GetHealthReportQuery{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, ok := response.(*reports.HealthReportResponse)
	if !ok {
		s.writeError(w, r, fmt.Errorf("unexpected response type"))
		return
	}

	rows := make([]healthReportRowDTO, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, healthReportRowDTO{
			Date:                 row.Date,
			TaskType:             string(row.TaskType),
			TotalTasks:           row.TotalTasks,
			SuccessfulTasks:      row.SuccessfulTasks,
			FailedTasks:          row.FailedTasks,
			SuccessRate:          row.SuccessRate,
			AverageExecutionTime: row.AverageExecutionTime,
			SystemStatus:         row.SystemStatus,
		})
	}
	s.writeJSON(w, http.StatusOK, rows)
}

// dashboardDTO carries one value per dashboard tile
type dashboardDTO struct {
	TotalSalesRecords    int64   `json:"totalSalesRecords"`
	SalesDataStatus      string  `json:"salesDataStatus"`
	TotalSkus            int64   `json:"totalSkus"`
	TotalStores          int64   `json:"totalStores"`
	TotalStyles          int64   `json:"totalStyles"`
	MasterDataStatus     string  `json:"masterDataStatus"`
	RecentUploads        int64   `json:"recentUploads"`
	UploadSuccessRate    float64 `json:"uploadSuccessRate"`
	RecentActivityStatus string  `json:"recentActivityStatus"`
	ActiveTasks          int64   `json:"activeTasks"`
	PendingTasks         int64   `json:"pendingTasks"`
	ProcessingStatus     string  `json:"processingStatus"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	response, err := s.mediator.Send(r.Context(), &reports.GetDashboardQuery{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dash, ok := response.(*reports.DashboardResponse)
	if !ok {
		s.writeError(w, r, fmt.Errorf("unexpected response type"))
		return
	}

	s.writeJSON(w, http.StatusOK, dashboardDTO{
		TotalSalesRecords:    dash.TotalSalesRecords,
		SalesDataStatus:      dash.SalesDataStatus,
		TotalSkus:            dash.TotalSkus,
		TotalStores:          dash.TotalStores,
		TotalStyles:          dash.TotalStyles,
		MasterDataStatus:     dash.MasterDataStatus,
		RecentUploads:        dash.RecentUploads,
		UploadSuccessRate:    dash.UploadSuccessRate,
		RecentActivityStatus: dash.RecentActivityStatus,
		ActiveTasks:          dash.ActiveTasks,
		PendingTasks:         dash.PendingTasks,
		ProcessingStatus:     dash.ProcessingStatus,
	})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	response, err := s.mediator.Send(r.Context(), &admin.ClearAllCommand{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	clearResp, ok := response.(*admin.ClearAllResponse)
	if !ok {
		s.writeError(w, r, fmt.Errorf("unexpected response type"))
		return
	}
	s.writeJSON(w, http.StatusOK, clearResp.Deleted)
}

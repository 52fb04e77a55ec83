package httpapi

import (
	"time"

	"github.com/retailcore/noos-go/internal/domain/params"
	"github.com/retailcore/noos-go/internal/domain/shared"
	"github.com/retailcore/noos-go/internal/domain/task"
)

// Wire conversion helpers for the domain <-> JSON boundary. Application
// responses carry plain Go types; the camelCase contract lives here.

const dateLayout = "2006-01-02"

// taskDTO is the wire shape of a task snapshot
type taskDTO struct {
	ID                    string                 `json:"id"`
	TaskType              string                 `json:"taskType"`
	Status                string                 `json:"status"`
	FileName              string                 `json:"fileName,omitempty"`
	UserID                string                 `json:"userId,omitempty"`
	TotalRecords          int                    `json:"totalRecords"`
	ProcessedRecords      int                    `json:"processedRecords"`
	ErrorCount            int                    `json:"errorCount"`
	SkippedCount          int                    `json:"skippedCount"`
	ProgressPercentage    float64                `json:"progressPercentage"`
	ProgressMessage       string                 `json:"progressMessage,omitempty"`
	Parameters            map[string]interface{} `json:"parameters,omitempty"`
	ResultURL             string                 `json:"resultUrl,omitempty"`
	ErrorFiles            map[string]string      `json:"errorFiles,omitempty"`
	ErrorMessage          string                 `json:"errorMessage,omitempty"`
	CancellationRequested bool                   `json:"cancellationRequested"`
	CreatedDate           time.Time              `json:"createdDate"`
	StartTime             *time.Time             `json:"startTime"`
	EndTime               *time.Time             `json:"endTime"`
}

func taskToDTO(t *task.Task) taskDTO {
	return taskDTO{
		ID:                    t.ID(),
		TaskType:              string(t.Type()),
		Status:                string(t.Status()),
		FileName:              t.FileName(),
		UserID:                t.UserID(),
		TotalRecords:          t.TotalRecords(),
		ProcessedRecords:      t.ProcessedRecords(),
		ErrorCount:            t.ErrorCount(),
		SkippedCount:          t.SkippedCount(),
		ProgressPercentage:    t.ProgressPercentage(),
		ProgressMessage:       t.ProgressMessage(),
		Parameters:            t.Parameters(),
		ResultURL:             t.ResultURL(),
		ErrorFiles:            t.ErrorFiles(),
		ErrorMessage:          t.ErrorMessage(),
		CancellationRequested: t.CancellationRequested(),
		CreatedDate:           t.CreatedDate(),
		StartTime:             t.StartTime(),
		EndTime:               t.EndTime(),
	}
}

// parameterSetDTO is the wire shape of a parameter set, shared by requests
// and responses. Dates travel as YYYY-MM-DD strings.
type parameterSetDTO struct {
	ParameterSetName       string  `json:"parameterSetName"`
	LiquidationThreshold   float64 `json:"liquidationThreshold"`
	BestsellerMultiplier   float64 `json:"bestsellerMultiplier"`
	MinVolumeThreshold     float64 `json:"minVolumeThreshold"`
	ConsistencyThreshold   float64 `json:"consistencyThreshold"`
	AnalysisStartDate      *string `json:"analysisStartDate"`
	AnalysisEndDate        *string `json:"analysisEndDate"`
	CoreDurationMonths     int     `json:"coreDurationMonths"`
	BestsellerDurationDays int     `json:"bestsellerDurationDays"`
	IsActive               bool    `json:"isActive"`
	LastUpdated            string  `json:"lastUpdated,omitempty"`
}

func parameterSetToDTO(set *params.ParameterSet) parameterSetDTO {
	dto := parameterSetDTO{
		ParameterSetName:       set.Name,
		LiquidationThreshold:   set.LiquidationThreshold,
		BestsellerMultiplier:   set.BestsellerMultiplier,
		MinVolumeThreshold:     set.MinVolumeThreshold,
		ConsistencyThreshold:   set.ConsistencyThreshold,
		CoreDurationMonths:     set.CoreDurationMonths,
		BestsellerDurationDays: set.BestsellerDurationDays,
		IsActive:               set.IsActive,
	}
	if set.AnalysisStartDate != nil {
		d := set.AnalysisStartDate.Format(dateLayout)
		dto.AnalysisStartDate = &d
	}
	if set.AnalysisEndDate != nil {
		d := set.AnalysisEndDate.Format(dateLayout)
		dto.AnalysisEndDate = &d
	}
	if !set.LastUpdated.IsZero() {
		dto.LastUpdated = set.LastUpdated.Format(time.RFC3339)
	}
	return dto
}

func parameterSetsToDTOs(sets []*params.ParameterSet) []parameterSetDTO {
	dtos := make([]parameterSetDTO, 0, len(sets))
	for _, set := range sets {
		dtos = append(dtos, parameterSetToDTO(set))
	}
	return dtos
}

// toDomain converts a submitted body into a domain parameter set. Dates
// must be YYYY-MM-DD; range validation happens in the application layer.
func (d *parameterSetDTO) toDomain() (*params.ParameterSet, error) {
	set := &params.ParameterSet{
		Name:                   d.ParameterSetName,
		LiquidationThreshold:   d.LiquidationThreshold,
		BestsellerMultiplier:   d.BestsellerMultiplier,
		MinVolumeThreshold:     d.MinVolumeThreshold,
		ConsistencyThreshold:   d.ConsistencyThreshold,
		CoreDurationMonths:     d.CoreDurationMonths,
		BestsellerDurationDays: d.BestsellerDurationDays,
	}
	if d.AnalysisStartDate != nil {
		t, err := time.Parse(dateLayout, *d.AnalysisStartDate)
		if err != nil {
			return nil, shared.NewValidationError("analysisStartDate must be YYYY-MM-DD")
		}
		set.AnalysisStartDate = &t
	}
	if d.AnalysisEndDate != nil {
		t, err := time.Parse(dateLayout, *d.AnalysisEndDate)
		if err != nil {
			return nil, shared.NewValidationError("analysisEndDate must be YYYY-MM-DD")
		}
		set.AnalysisEndDate = &t
	}
	return set, nil
}

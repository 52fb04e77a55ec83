package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// APIClient talks to the NOOS server over its HTTP API
type APIClient struct {
	baseURL string
	httpc   *http.Client
}

// Response types (mirrors of the server wire shapes)

type TaskInfo struct {
	ID                    string                 `json:"id"`
	TaskType              string                 `json:"taskType"`
	Status                string                 `json:"status"`
	FileName              string                 `json:"fileName"`
	UserID                string                 `json:"userId"`
	TotalRecords          int                    `json:"totalRecords"`
	ProcessedRecords      int                    `json:"processedRecords"`
	ErrorCount            int                    `json:"errorCount"`
	SkippedCount          int                    `json:"skippedCount"`
	ProgressPercentage    float64                `json:"progressPercentage"`
	ProgressMessage       string                 `json:"progressMessage"`
	Parameters            map[string]interface{} `json:"parameters"`
	ResultURL             string                 `json:"resultUrl"`
	ErrorFiles            map[string]string      `json:"errorFiles"`
	ErrorMessage          string                 `json:"errorMessage"`
	CancellationRequested bool                   `json:"cancellationRequested"`
	CreatedDate           time.Time              `json:"createdDate"`
	StartTime             *time.Time             `json:"startTime"`
	EndTime               *time.Time             `json:"endTime"`
}

// IsTerminal reports whether the task accepts no further transitions
func (t *TaskInfo) IsTerminal() bool {
	switch t.Status {
	case "COMPLETED", "FAILED", "CANCELLED":
		return true
	}
	return false
}

type FileStatusInfo struct {
	Exists             bool              `json:"exists"`
	Count              int64             `json:"count"`
	Processing         bool              `json:"processing"`
	Failed             bool              `json:"failed"`
	ProgressPercentage float64           `json:"progressPercentage"`
	ProgressMessage    string            `json:"progressMessage"`
	ErrorFiles         map[string]string `json:"errorFiles"`
}

type ParameterSetInfo struct {
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
	LastUpdated            string  `json:"lastUpdated"`
}

type NoosReportRow struct {
	ExecutionDate        time.Time              `json:"executionDate"`
	AlgorithmLabel       string                 `json:"algorithmLabel"`
	ExecutionStatus      string                 `json:"executionStatus"`
	TotalStylesProcessed int                    `json:"totalStylesProcessed"`
	CoreStyles           int                    `json:"coreStyles"`
	BestsellerStyles     int                    `json:"bestsellerStyles"`
	FashionStyles        int                    `json:"fashionStyles"`
	ExecutionTimeMinutes float64                `json:"executionTimeMinutes"`
	Parameters           map[string]interface{} `json:"parameters"`
}

type HealthReportRow struct {
	Date                 string  `json:"date"`
	TaskType             string  `json:"taskType"`
	TotalTasks           int64   `json:"totalTasks"`
	SuccessfulTasks      int64   `json:"successfulTasks"`
	FailedTasks          int64   `json:"failedTasks"`
	SuccessRate          float64 `json:"successRate"`
	AverageExecutionTime float64 `json:"averageExecutionTime"`
	SystemStatus         string  `json:"systemStatus"`
}

type DashboardInfo struct {
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

// NewAPIClient creates a new API client for the given base URL
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

// UploadFile submits a TSV file for asynchronous ingestion
func (c *APIClient) UploadFile(ctx context.Context, kind, filePath, userID string) (*TaskInfo, error) {
	payload, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if userID != "" {
		if err := writer.WriteField("userId", userID); err != nil {
			return nil, fmt.Errorf("failed to build multipart body: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/file/upload/"+url.PathEscape(kind)+"/async", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var task TaskInfo
	if err := c.send(req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// SubmitDownload submits an asynchronous export task
func (c *APIClient) SubmitDownload(ctx context.Context, kind string) (*TaskInfo, error) {
	var task TaskInfo
	err := c.doJSON(ctx, http.MethodPost, "/api/file/download/"+url.PathEscape(kind)+"/async", nil, &task)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FileStatus reports stored data and latest uploads per kind
func (c *APIClient) FileStatus(ctx context.Context) (map[string]FileStatusInfo, error) {
	var status map[string]FileStatusInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/file/status", nil, &status); err != nil {
		return nil, err
	}
	return status, nil
}

// GetTask fetches one task snapshot
func (c *APIClient) GetTask(ctx context.Context, taskID string) (*TaskInfo, error) {
	var task TaskInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(taskID), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CancelTask requests cooperative cancellation
func (c *APIClient) CancelTask(ctx context.Context, taskID string) (*TaskInfo, error) {
	var task TaskInfo
	if err := c.doJSON(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(taskID)+"/cancel", nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DownloadResult streams a completed task's artifact into w
func (c *APIClient) DownloadResult(ctx context.Context, taskID string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/tasks/"+url.PathEscape(taskID)+"/result", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeAPIError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to stream result: %w", err)
	}
	return nil
}

// RunNoos submits a classification run with optional parameter overrides
func (c *APIClient) RunNoos(ctx context.Context, overrides map[string]interface{}) (*TaskInfo, error) {
	var task TaskInfo
	if err := c.doJSON(ctx, http.MethodPost, "/api/run/noos/async", overrides, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Parameter-set operations

func (c *APIClient) ActiveParameters(ctx context.Context) (*ParameterSetInfo, error) {
	var set ParameterSetInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/algo/current", nil, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (c *APIClient) DefaultParameters(ctx context.Context) (*ParameterSetInfo, error) {
	var set ParameterSetInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/algo/defaults", nil, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (c *APIClient) GetParameterSet(ctx context.Context, name string) (*ParameterSetInfo, error) {
	var set ParameterSetInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/algo/set/"+url.PathEscape(name), nil, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (c *APIClient) UpdateActiveParameters(ctx context.Context, values *ParameterSetInfo) (*ParameterSetInfo, error) {
	var set ParameterSetInfo
	if err := c.doJSON(ctx, http.MethodPost, "/api/algo/update", values, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (c *APIClient) UpdateParameterSet(ctx context.Context, name string, values *ParameterSetInfo) (*ParameterSetInfo, error) {
	var set ParameterSetInfo
	if err := c.doJSON(ctx, http.MethodPut, "/api/algo/set/"+url.PathEscape(name), values, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (c *APIClient) CreateParameterSet(ctx context.Context, name string, values *ParameterSetInfo) (*ParameterSetInfo, error) {
	var set ParameterSetInfo
	path := "/api/algo/create?name=" + url.QueryEscape(name)
	if err := c.doJSON(ctx, http.MethodPost, path, values, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (c *APIClient) ActivateParameterSet(ctx context.Context, name string) (*ParameterSetInfo, error) {
	var set ParameterSetInfo
	if err := c.doJSON(ctx, http.MethodPost, "/api/algo/set/"+url.PathEscape(name)+"/activate", nil, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (c *APIClient) RecentParameterSets(ctx context.Context, limit int) ([]ParameterSetInfo, error) {
	path := "/api/algo/sets/recent"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var sets []ParameterSetInfo
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &sets); err != nil {
		return nil, err
	}
	return sets, nil
}

// Reports

func (c *APIClient) NoosReport(ctx context.Context) ([]NoosReportRow, error) {
	var rows []NoosReportRow
	if err := c.doJSON(ctx, http.MethodGet, "/api/report/report1", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *APIClient) HealthReport(ctx context.Context) ([]HealthReportRow, error) {
	var rows []HealthReportRow
	if err := c.doJSON(ctx, http.MethodGet, "/api/report/report2", nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *APIClient) Dashboard(ctx context.Context) (*DashboardInfo, error) {
	var dash DashboardInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/updates", nil, &dash); err != nil {
		return nil, err
	}
	return &dash, nil
}

// ClearAll wipes all retail data and returns per-table deletion counts
func (c *APIClient) ClearAll(ctx context.Context) (map[string]int64, error) {
	var deleted map[string]int64
	if err := c.doJSON(ctx, http.MethodDelete, "/api/data/clear-all", nil, &deleted); err != nil {
		return nil, err
	}
	return deleted, nil
}

// Health checks server liveness
func (c *APIClient) Health(ctx context.Context) error {
	var status map[string]string
	return c.doJSON(ctx, http.MethodGet, "/healthz", nil, &status)
}

// doJSON sends an optional JSON body and decodes a JSON response into out
func (c *APIClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *APIClient) send(req *http.Request, out interface{}) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeAPIError converts a non-2xx response into an error carrying the
// server's errorCode and message
func decodeAPIError(resp *http.Response) error {
	var body struct {
		ErrorCode string   `json:"errorCode"`
		Message   string   `json:"message"`
		Details   []string `json:"details"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if len(body.Details) > 0 {
		return fmt.Errorf("%s: %s (%s)", body.ErrorCode, body.Message, strings.Join(body.Details, "; "))
	}
	return fmt.Errorf("%s: %s", body.ErrorCode, body.Message)
}

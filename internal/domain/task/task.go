package task

import (
	"fmt"
	"time"

	"github.com/retailcore/noos-go/internal/domain/shared"
)

// Status represents the lifecycle state of a task
type Status string

const (
	// StatusPending indicates the task is queued but not started
	StatusPending Status = "PENDING"

	// StatusRunning indicates the task is actively executing
	StatusRunning Status = "RUNNING"

	// StatusCompleted indicates the task finished successfully
	StatusCompleted Status = "COMPLETED"

	// StatusFailed indicates the task encountered an error (including
	// timeout and restart interruption, distinguished by FailureKind)
	StatusFailed Status = "FAILED"

	// StatusCancelled indicates the task honored a cancellation request
	StatusCancelled Status = "CANCELLED"
)

// Type categorizes the operation a task performs
type Type string

const (
	TypeUploadStyles Type = "FILE_UPLOAD_STYLES"
	TypeUploadStores Type = "FILE_UPLOAD_STORES"
	TypeUploadSkus   Type = "FILE_UPLOAD_SKUS"
	TypeUploadSales  Type = "FILE_UPLOAD_SALES"

	TypeDownloadStyles Type = "FILE_DOWNLOAD_STYLES"
	TypeDownloadStores Type = "FILE_DOWNLOAD_STORES"
	TypeDownloadSkus   Type = "FILE_DOWNLOAD_SKUS"
	TypeDownloadSales  Type = "FILE_DOWNLOAD_SALES"
	TypeDownloadNoos   Type = "FILE_DOWNLOAD_NOOS"

	TypeAlgorithmRun Type = "ALGORITHM_RUN"
)

// Category identifies the worker pool a task type runs on
type Category string

const (
	CategoryUpload   Category = "upload"
	CategoryDownload Category = "download"
	CategoryCompute  Category = "compute"
)

// AllTypes lists every known task type
func AllTypes() []Type {
	return []Type{
		TypeUploadStyles, TypeUploadStores, TypeUploadSkus, TypeUploadSales,
		TypeDownloadStyles, TypeDownloadStores, TypeDownloadSkus, TypeDownloadSales, TypeDownloadNoos,
		TypeAlgorithmRun,
	}
}

// IsValid reports whether t is a known task type
func (t Type) IsValid() bool {
	for _, known := range AllTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Category derives the worker pool category from the task type
func (t Type) Category() Category {
	switch t {
	case TypeUploadStyles, TypeUploadStores, TypeUploadSkus, TypeUploadSales:
		return CategoryUpload
	case TypeDownloadStyles, TypeDownloadStores, TypeDownloadSkus, TypeDownloadSales, TypeDownloadNoos:
		return CategoryDownload
	default:
		return CategoryCompute
	}
}

// UploadTypeFor maps a file kind from the API surface to its upload task
// type
func UploadTypeFor(kind string) (Type, bool) {
	switch kind {
	case "styles":
		return TypeUploadStyles, true
	case "stores":
		return TypeUploadStores, true
	case "skus":
		return TypeUploadSkus, true
	case "sales":
		return TypeUploadSales, true
	}
	return "", false
}

// DownloadTypeFor maps a file kind from the API surface to its download
// task type; "noos" exports the latest classification run
func DownloadTypeFor(kind string) (Type, bool) {
	switch kind {
	case "styles":
		return TypeDownloadStyles, true
	case "stores":
		return TypeDownloadStores, true
	case "skus":
		return TypeDownloadSkus, true
	case "sales":
		return TypeDownloadSales, true
	case "noos":
		return TypeDownloadNoos, true
	}
	return "", false
}

// IsTerminal reports whether s accepts no further transitions
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Task represents one asynchronous unit of work: an upload, a download, or
// an algorithm run. Tasks are created PENDING, picked up by exactly one pool
// worker, and driven to a terminal state. Only the owning worker mutates
// runtime fields; cancellationRequested may be flipped by any caller.
//
// Lifecycle Integration:
// - Uses LifecycleStateMachine for core state management and timestamps
// - Adds progress tracking (monotonic percentage + message)
// - Adds record counters, result/artifact bookkeeping and the cancel flag
type Task struct {
	id       string
	taskType Type
	fileName string
	userID   string

	// Core lifecycle managed by state machine
	lifecycle *shared.LifecycleStateMachine

	// Record counters maintained by the owning handler
	totalRecords     int
	processedRecords int
	errorCount       int
	skippedCount     int

	// Progress tracking; percentage is clamped monotonic within RUNNING
	progressPercentage float64
	progressMessage    string

	// Operation-specific parameters (JSON-serialized at the storage boundary)
	parameters map[string]interface{}

	// Outcome bookkeeping
	resultURL  string
	errorFiles map[string]string

	cancellationRequested bool

	clock shared.Clock
}

// New creates a task in PENDING state.
// If clock is nil, uses RealClock (production behavior).
func New(id string, taskType Type, fileName, userID string, parameters map[string]interface{}, clock shared.Clock) *Task {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if parameters == nil {
		parameters = make(map[string]interface{})
	}

	return &Task{
		id:         id,
		taskType:   taskType,
		fileName:   fileName,
		userID:     userID,
		lifecycle:  shared.NewLifecycleStateMachine(clock),
		parameters: parameters,
		errorFiles: make(map[string]string),
		clock:      clock,
	}
}

// Getters

func (t *Task) ID() string                         { return t.id }
func (t *Task) Type() Type                         { return t.taskType }
func (t *Task) Category() Category                 { return t.taskType.Category() }
func (t *Task) FileName() string                   { return t.fileName }
func (t *Task) UserID() string                     { return t.userID }
func (t *Task) TotalRecords() int                  { return t.totalRecords }
func (t *Task) ProcessedRecords() int              { return t.processedRecords }
func (t *Task) ErrorCount() int                    { return t.errorCount }
func (t *Task) SkippedCount() int                  { return t.skippedCount }
func (t *Task) ProgressPercentage() float64        { return t.progressPercentage }
func (t *Task) ProgressMessage() string            { return t.progressMessage }
func (t *Task) Parameters() map[string]interface{} { return t.parameters }
func (t *Task) ResultURL() string                  { return t.resultURL }
func (t *Task) ErrorFiles() map[string]string      { return t.errorFiles }
func (t *Task) CancellationRequested() bool        { return t.cancellationRequested }

// Lifecycle timestamp accessors (delegate to lifecycle machine)

func (t *Task) CreatedDate() time.Time { return t.lifecycle.CreatedAt() }
func (t *Task) UpdatedAt() time.Time   { return t.lifecycle.UpdatedAt() }
func (t *Task) StartTime() *time.Time  { return t.lifecycle.StartedAt() }
func (t *Task) EndTime() *time.Time    { return t.lifecycle.FinishedAt() }
func (t *Task) LastError() error       { return t.lifecycle.LastError() }

// Status returns the current task status
func (t *Task) Status() Status {
	switch t.lifecycle.Status() {
	case shared.LifecycleStatusPending:
		return StatusPending
	case shared.LifecycleStatusRunning:
		return StatusRunning
	case shared.LifecycleStatusCompleted:
		return StatusCompleted
	case shared.LifecycleStatusFailed:
		return StatusFailed
	case shared.LifecycleStatusCancelled:
		return StatusCancelled
	default:
		return StatusPending
	}
}

// ErrorMessage returns the bounded, display-safe failure summary
func (t *Task) ErrorMessage() string {
	err := t.lifecycle.LastError()
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return msg
}

// FailureKind classifies a FAILED task (TIMEOUT, INTERRUPTED, VALIDATION, ...).
// Returns KindInternal for failures without a domain kind.
func (t *Task) FailureKind() shared.Kind {
	err := t.lifecycle.LastError()
	if err == nil {
		return ""
	}
	return shared.KindOf(err)
}

// maxErrorMessageLen bounds errorMessage so task rows and API payloads stay small
const maxErrorMessageLen = 500

// State transition methods

// Start transitions the task to RUNNING
func (t *Task) Start() error {
	return t.lifecycle.Start()
}

// Complete transitions the task to COMPLETED and forces progress to 100
func (t *Task) Complete() error {
	if err := t.lifecycle.Complete(); err != nil {
		return err
	}
	t.progressPercentage = 100
	return nil
}

// Fail transitions the task to FAILED with the given error
func (t *Task) Fail(err error) error {
	return t.lifecycle.Fail(err)
}

// Cancel transitions the task to CANCELLED
func (t *Task) Cancel() error {
	return t.lifecycle.Cancel()
}

// Progress

// MarkProgress records a progress update. Percentages are clamped to [0,100]
// and to the current value so the observable sequence is non-decreasing.
func (t *Task) MarkProgress(percentage float64, message string) {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	if percentage >= t.progressPercentage {
		t.progressPercentage = percentage
	}
	if message != "" {
		t.progressMessage = message
	}
	t.lifecycle.UpdateTimestamp()
}

// Counters

// SetTotalRecords records the number of data rows in the input
func (t *Task) SetTotalRecords(n int) {
	t.totalRecords = n
	t.lifecycle.UpdateTimestamp()
}

// RecordOutcome records the final row counters for the task
func (t *Task) RecordOutcome(processed, errors, skipped int) {
	t.processedRecords = processed
	t.errorCount = errors
	t.skippedCount = skipped
	t.lifecycle.UpdateTimestamp()
}

// SetProcessedRecords updates the committed-row counter mid-run
func (t *Task) SetProcessedRecords(n int) {
	t.processedRecords = n
	t.lifecycle.UpdateTimestamp()
}

// Cancellation

// RequestCancel flips the cooperative cancellation flag. Idempotent; no
// effect on terminal tasks.
func (t *Task) RequestCancel() {
	if t.Status().IsTerminal() {
		return
	}
	t.cancellationRequested = true
	t.lifecycle.UpdateTimestamp()
}

// Outcome bookkeeping

// SetResultURL records the artifact location for a completed task
func (t *Task) SetResultURL(url string) {
	t.resultURL = url
	t.lifecycle.UpdateTimestamp()
}

// AddErrorFile records the path of a produced error artifact
func (t *Task) AddErrorFile(name, path string) {
	if t.errorFiles == nil {
		t.errorFiles = make(map[string]string)
	}
	t.errorFiles[name] = path
	t.lifecycle.UpdateTimestamp()
}

// SetParameter records an operation parameter (e.g. sanitized algorithm
// values, run summaries)
func (t *Task) SetParameter(key string, value interface{}) {
	if t.parameters == nil {
		t.parameters = make(map[string]interface{})
	}
	t.parameters[key] = value
	t.lifecycle.UpdateTimestamp()
}

// GetParameter retrieves an operation parameter
func (t *Task) GetParameter(key string) (interface{}, bool) {
	if t.parameters == nil {
		return nil, false
	}
	v, ok := t.parameters[key]
	return v, ok
}

// State queries

// IsFinished reports whether the task reached a terminal state
func (t *Task) IsFinished() bool {
	return t.lifecycle.IsFinished()
}

// RuntimeDuration calculates how long the task has been/was running
func (t *Task) RuntimeDuration() time.Duration {
	return t.lifecycle.RuntimeDuration()
}

// String provides a human-readable representation
func (t *Task) String() string {
	return fmt.Sprintf("Task[%s, type=%s, status=%s, progress=%.0f%%]",
		t.id, t.taskType, t.Status(), t.progressPercentage)
}

// Reconstruct rebuilds a task from persisted state. Only the persistence
// layer should call this.
func Reconstruct(
	id string,
	taskType Type,
	fileName, userID string,
	status Status,
	totalRecords, processedRecords, errorCount, skippedCount int,
	progressPercentage float64,
	progressMessage string,
	parameters map[string]interface{},
	resultURL string,
	errorFiles map[string]string,
	cancellationRequested bool,
	errorMessage string,
	createdDate, updatedAt time.Time,
	startTime, endTime *time.Time,
	clock shared.Clock,
) *Task {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if parameters == nil {
		parameters = make(map[string]interface{})
	}
	if errorFiles == nil {
		errorFiles = make(map[string]string)
	}

	t := &Task{
		id:                    id,
		taskType:              taskType,
		fileName:              fileName,
		userID:                userID,
		lifecycle:             shared.NewLifecycleStateMachine(clock),
		totalRecords:          totalRecords,
		processedRecords:      processedRecords,
		errorCount:            errorCount,
		skippedCount:          skippedCount,
		progressPercentage:    progressPercentage,
		progressMessage:       progressMessage,
		parameters:            parameters,
		resultURL:             resultURL,
		errorFiles:            errorFiles,
		cancellationRequested: cancellationRequested,
		clock:                 clock,
	}

	var lastErr error
	if errorMessage != "" {
		lastErr = shared.NewError(shared.KindInternal, errorMessage)
	}
	t.lifecycle.RecoverFromPersistence(
		shared.LifecycleStatus(status), createdDate, updatedAt, startTime, endTime, lastErr,
	)
	return t
}

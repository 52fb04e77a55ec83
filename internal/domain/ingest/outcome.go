package ingest

import "fmt"

// SkippedRow is a sales row set aside for an unknown SKU. Skips are
// warnings, not errors; they never reject the batch.
type SkippedRow struct {
	Line    int
	SKUCode string
	Raw     []string
}

// Warning renders the user-facing form
func (s SkippedRow) Warning() string {
	return fmt.Sprintf("Row %d: skipped, unknown SKU %s", s.Line, s.SKUCode)
}

// Outcome is the result of one ingestion batch as reported to the caller
// and recorded on the task.
type Outcome struct {
	Success      bool
	RecordCount  int
	ErrorCount   int
	SkippedCount int
	Messages     []string
	Warnings     []string
	Errors       []string

	// RowErrors and Skipped retain the structured rows for artifact files
	RowErrors []RowError
	Skipped   []SkippedRow
}

// NewOutcome builds an outcome from the batch's accumulated results
func NewOutcome(recordCount int, rowErrors []RowError, skipped []SkippedRow) *Outcome {
	out := &Outcome{
		Success:      len(rowErrors) == 0,
		RecordCount:  recordCount,
		ErrorCount:   len(rowErrors),
		SkippedCount: len(skipped),
		RowErrors:    rowErrors,
		Skipped:      skipped,
	}
	for _, e := range rowErrors {
		out.Errors = append(out.Errors, e.String())
	}
	for _, s := range skipped {
		out.Warnings = append(out.Warnings, s.Warning())
	}
	return out
}

// AddMessage appends a progress/summary message
func (o *Outcome) AddMessage(format string, args ...interface{}) {
	o.Messages = append(o.Messages, fmt.Sprintf(format, args...))
}

// Summary renders the one-line form used for task error messages
func (o *Outcome) Summary() string {
	if o.Success {
		return fmt.Sprintf("%d records loaded, %d skipped", o.RecordCount, o.SkippedCount)
	}
	first := ""
	if len(o.Errors) > 0 {
		first = ": " + o.Errors[0]
	}
	return fmt.Sprintf("%d validation errors%s", o.ErrorCount, first)
}

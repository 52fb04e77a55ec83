package noos

import "context"

// ResultRepository defines persistence operations for classification results.
// The store holds only the latest run; ReplaceAll swaps the previous result
// set for the new one atomically.
type ResultRepository interface {
	// ReplaceAll deletes all existing results and inserts the given ones in
	// a single transaction. A failed swap leaves the previous set intact.
	ReplaceAll(ctx context.Context, results []*Result) error

	// FindAll retrieves all results ordered by styleCode
	FindAll(ctx context.Context) ([]*Result, error)

	// FindByRunID retrieves the results tagged with the given run
	FindByRunID(ctx context.Context, runID string) ([]*Result, error)

	// Count returns the number of stored results
	Count(ctx context.Context) (int64, error)
}

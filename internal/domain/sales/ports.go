package sales

import (
	"context"
	"time"
)

// Repository defines read operations for sales. Writes go through the
// ingestion batch writer so clearing and inserting share one transaction.
type Repository interface {
	// FindByDateRange retrieves sales with date in [from, to]. Nil bounds
	// select all sales.
	FindByDateRange(ctx context.Context, from, to *time.Time) ([]*Sale, error)

	// ForEachBatch streams all sales in batches of the given size, ordered
	// by id. fn returning an error stops the scan.
	ForEachBatch(ctx context.Context, batchSize int, fn func(batch []*Sale) error) error

	// Count returns the number of stored sales
	Count(ctx context.Context) (int64, error)
}

package ingest

import (
	"context"

	"github.com/retailcore/noos-go/internal/domain/catalog"
	"github.com/retailcore/noos-go/internal/domain/sales"
)

// Checkpoint is invoked between persisted chunks with the running row
// count. Returning an error aborts the batch and rolls the transaction
// back; the pipeline uses this to honor cancellation mid-write.
type Checkpoint func(written int) error

// BatchWriter persists one validated batch. Each Replace method clears
// dependent tables in dependency order and inserts the new rows in chunks,
// all inside a single transaction:
//
//	styles: sales → skus → styles
//	stores: sales → stores
//	skus:   sales → skus
//	sales:  sales
//
// Rollback restores the prior state atomically, so a cancelled or failed
// batch leaves no partial writes behind.
type BatchWriter interface {
	ReplaceStyles(ctx context.Context, rows []*catalog.Style, chunkSize int, checkpoint Checkpoint) error
	ReplaceStores(ctx context.Context, rows []*catalog.Store, chunkSize int, checkpoint Checkpoint) error
	ReplaceSkus(ctx context.Context, rows []*catalog.SKU, chunkSize int, checkpoint Checkpoint) error
	ReplaceSales(ctx context.Context, rows []*sales.Sale, chunkSize int, checkpoint Checkpoint) error
}

// Wiper clears every stored data set in foreign-key order inside one
// transaction and reports the deleted row counts per table. Task history
// and parameter sets survive a wipe.
type Wiper interface {
	ClearAll(ctx context.Context) (map[string]int64, error)
}

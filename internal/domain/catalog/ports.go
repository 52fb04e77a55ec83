package catalog

import "context"

// StyleRepository defines read operations for styles. Writes go through the
// ingestion batch writer so clearing and inserting share one transaction.
type StyleRepository interface {
	// FindAll retrieves all styles ordered by styleCode
	FindAll(ctx context.Context) ([]*Style, error)

	// FindByCode retrieves a style by its natural key
	FindByCode(ctx context.Context, styleCode string) (*Style, error)

	// CodeToID returns a styleCode → id index for foreign-key resolution
	CodeToID(ctx context.Context) (map[string]int64, error)

	// Count returns the number of stored styles
	Count(ctx context.Context) (int64, error)
}

// StoreRepository defines read operations for stores
type StoreRepository interface {
	// FindAll retrieves all stores ordered by branch
	FindAll(ctx context.Context) ([]*Store, error)

	// BranchToID returns a branch → id index for foreign-key resolution
	BranchToID(ctx context.Context) (map[string]int64, error)

	// Count returns the number of stored stores
	Count(ctx context.Context) (int64, error)
}

// SKURepository defines read operations for SKUs
type SKURepository interface {
	// FindAll retrieves all SKUs ordered by sku code
	FindAll(ctx context.Context) ([]*SKU, error)

	// CodeToID returns a sku → id index for foreign-key resolution
	CodeToID(ctx context.Context) (map[string]int64, error)

	// Count returns the number of stored SKUs
	Count(ctx context.Context) (int64, error)
}

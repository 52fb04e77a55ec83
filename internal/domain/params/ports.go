package params

import "context"

// Repository defines persistence operations for parameter sets.
// CreateActive and Activate perform the deactivate+activate swap inside one
// transaction so readers never observe zero or two active sets.
type Repository interface {
	// FindActive retrieves the unique active set, or NOT_FOUND when none
	// has been seeded yet
	FindActive(ctx context.Context) (*ParameterSet, error)

	// FindByName retrieves a set by name, or NOT_FOUND
	FindByName(ctx context.Context, name string) (*ParameterSet, error)

	// ListRecent retrieves sets ordered by isActive desc, lastUpdated desc
	ListRecent(ctx context.Context, limit int) ([]*ParameterSet, error)

	// CreateActive inserts a new set as active and deactivates the current
	// active set in the same transaction. CONFLICT when the name exists.
	CreateActive(ctx context.Context, set *ParameterSet) (*ParameterSet, error)

	// Update persists field changes to an existing set without touching
	// activity flags
	Update(ctx context.Context, set *ParameterSet) (*ParameterSet, error)

	// Activate deactivates the current active set and activates the named
	// one in the same transaction. NOT_FOUND when the name is absent.
	Activate(ctx context.Context, name string) (*ParameterSet, error)
}

package catalog

// Store represents a retail location (master data).
// branch is the natural key.
type Store struct {
	ID     int64
	Branch string
	City   string
}

// NewStore creates a store from validated, normalized fields
func NewStore(branch, city string) *Store {
	return &Store{Branch: branch, City: city}
}

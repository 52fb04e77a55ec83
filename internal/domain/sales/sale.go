package sales

import "time"

// Sale represents one transaction line. References resolve by id only;
// SKUCode and Branch ride along for exports and the classification join.
type Sale struct {
	ID       int64
	Date     time.Time
	SKUID    int64
	SKUCode  string
	StoreID  int64
	Branch   string
	Quantity int
	Discount float64
	Revenue  float64
}

// NewSale creates a sale from validated, normalized fields with resolved
// SKU and store references
func NewSale(date time.Time, skuID int64, skuCode string, storeID int64, branch string, quantity int, discount, revenue float64) *Sale {
	return &Sale{
		Date:     date,
		SKUID:    skuID,
		SKUCode:  skuCode,
		StoreID:  storeID,
		Branch:   branch,
		Quantity: quantity,
		Discount: discount,
		Revenue:  revenue,
	}
}

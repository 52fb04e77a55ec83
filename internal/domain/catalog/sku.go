package catalog

// SKU represents a sellable unit of a style (master data).
// sku is the natural key; StyleID must reference an existing Style at insert
// time. StyleCode rides along for exports and the classification join so the
// entity graph stays id-only.
type SKU struct {
	ID        int64
	SKUCode   string
	StyleID   int64
	StyleCode string
	Size      string
}

// NewSKU creates a SKU from validated, normalized fields and a resolved style
func NewSKU(skuCode string, styleID int64, styleCode, size string) *SKU {
	return &SKU{
		SKUCode:   skuCode,
		StyleID:   styleID,
		StyleCode: styleCode,
		Size:      size,
	}
}

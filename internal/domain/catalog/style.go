package catalog

// Style represents a product style (master data).
// styleCode is the natural key; rows are replaced wholesale by uploads.
type Style struct {
	ID          int64
	StyleCode   string
	Brand       string
	Category    string
	SubCategory string
	MRP         float64
	Gender      string
}

// NewStyle creates a style from validated, normalized fields
func NewStyle(styleCode, brand, category, subCategory string, mrp float64, gender string) *Style {
	return &Style{
		StyleCode:   styleCode,
		Brand:       brand,
		Category:    category,
		SubCategory: subCategory,
		MRP:         mrp,
		Gender:      gender,
	}
}

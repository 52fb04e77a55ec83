package ingest

// Kind identifies which table a TSV file feeds
type Kind string

const (
	KindStyles Kind = "styles"
	KindStores Kind = "stores"
	KindSkus   Kind = "skus"
	KindSales  Kind = "sales"
)

// AllKinds lists the ingestable file kinds
func AllKinds() []Kind {
	return []Kind{KindStyles, KindStores, KindSkus, KindSales}
}

// IsValid reports whether k names an ingestable file kind
func (k Kind) IsValid() bool {
	switch k {
	case KindStyles, KindStores, KindSkus, KindSales:
		return true
	}
	return false
}

// Class describes how a column's raw text is normalized and typed
type Class int

const (
	// ClassText is trimmed and upper-cased, with length bounds
	ClassText Class = iota

	// ClassDecimal parses as a decimal number
	ClassDecimal

	// ClassDate parses as a strict YYYY-MM-DD date
	ClassDate

	// ClassInteger parses as an integer
	ClassInteger
)

// Column declares one TSV column: its header name, value class and
// constraints. All columns are required; an empty value is a row error.
type Column struct {
	Name     string
	Class    Class
	MinLen   int
	MaxLen   int
	Positive bool // numeric value must be > 0 (otherwise >= 0)
}

// Schema declares a file kind's fixed column order plus the natural-key
// column used for intra-batch duplicate detection (empty for sales, which
// has no natural key).
type Schema struct {
	Kind       Kind
	Columns    []Column
	NaturalKey string
}

// Header returns the expected header tokens in order
func (s Schema) Header() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// MaxRows caps the data rows accepted per file (exclusive of header)
const MaxRows = 500_000

// DefaultChunkSize is the number of rows written per chunk during batch
// persistence; cancellation is checked and progress published between chunks
const DefaultChunkSize = 1_000

var schemas = map[Kind]Schema{
	KindStyles: {
		Kind:       KindStyles,
		NaturalKey: "style",
		Columns: []Column{
			{Name: "style", Class: ClassText, MinLen: 1, MaxLen: 50},
			{Name: "brand", Class: ClassText, MinLen: 1, MaxLen: 50},
			{Name: "category", Class: ClassText, MinLen: 1, MaxLen: 50},
			{Name: "sub_category", Class: ClassText, MinLen: 1, MaxLen: 50},
			{Name: "mrp", Class: ClassDecimal, Positive: true},
			{Name: "gender", Class: ClassText, MinLen: 1, MaxLen: 10},
		},
	},
	KindStores: {
		Kind:       KindStores,
		NaturalKey: "branch",
		Columns: []Column{
			{Name: "branch", Class: ClassText, MinLen: 1, MaxLen: 50},
			{Name: "city", Class: ClassText, MinLen: 1, MaxLen: 50},
		},
	},
	KindSkus: {
		Kind:       KindSkus,
		NaturalKey: "sku",
		Columns: []Column{
			{Name: "sku", Class: ClassText, MinLen: 1, MaxLen: 50},
			{Name: "style", Class: ClassText, MinLen: 1, MaxLen: 50},
			{Name: "size", Class: ClassText, MinLen: 1, MaxLen: 10},
		},
	},
	KindSales: {
		Kind: KindSales,
		Columns: []Column{
			{Name: "day", Class: ClassDate},
			{Name: "sku", Class: ClassText, MinLen: 1, MaxLen: 50},
			{Name: "channel", Class: ClassText, MinLen: 1, MaxLen: 50},
			{Name: "quantity", Class: ClassInteger, Positive: true},
			{Name: "discount", Class: ClassDecimal},
			{Name: "revenue", Class: ClassDecimal},
		},
	},
}

// SchemaFor returns the schema for a file kind
func SchemaFor(kind Kind) Schema {
	return schemas[kind]
}

package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the strict date format accepted in sales files
const DateLayout = "2006-01-02"

// RowError is one rejected row with its reason code. Reason codes follow
// the `<check>:<field>` form: empty, length, number and date come from
// field validation, duplicate from intra-batch natural-key collisions, and
// unknown from foreign-key misses resolved by the pipeline.
type RowError struct {
	Line   int
	Reason string
	Raw    []string
}

// String renders the user-facing form, e.g. "Row 4: empty:brand"
func (e RowError) String() string {
	return fmt.Sprintf("Row %d: %s", e.Line, e.Reason)
}

// TypedRow holds one validated row's normalized, typed values keyed by
// column name
type TypedRow struct {
	Line     int
	Raw      []string
	Text     map[string]string
	Decimals map[string]float64
	Dates    map[string]time.Time
	Ints     map[string]int
}

// ValidateRow checks one row against the schema and produces its typed
// values. Validation stops at the row's first failing column, so each bad
// row yields exactly one error.
func ValidateRow(row Row, schema Schema) (*TypedRow, *RowError) {
	typed := &TypedRow{
		Line:     row.Line,
		Raw:      row.Raw,
		Text:     make(map[string]string),
		Decimals: make(map[string]float64),
		Dates:    make(map[string]time.Time),
		Ints:     make(map[string]int),
	}

	for _, col := range schema.Columns {
		value := row.Fields[col.Name]
		if value == "" {
			return nil, &RowError{Line: row.Line, Reason: "empty:" + col.Name, Raw: row.Raw}
		}

		switch col.Class {
		case ClassText:
			normalized := strings.ToUpper(value)
			if len(normalized) < col.MinLen || (col.MaxLen > 0 && len(normalized) > col.MaxLen) {
				return nil, &RowError{Line: row.Line, Reason: "length:" + col.Name, Raw: row.Raw}
			}
			typed.Text[col.Name] = normalized

		case ClassDecimal:
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil || !withinSign(parsed, col.Positive) {
				return nil, &RowError{Line: row.Line, Reason: "number:" + col.Name, Raw: row.Raw}
			}
			typed.Decimals[col.Name] = parsed

		case ClassInteger:
			parsed, err := strconv.Atoi(value)
			if err != nil || !withinSign(float64(parsed), col.Positive) {
				return nil, &RowError{Line: row.Line, Reason: "number:" + col.Name, Raw: row.Raw}
			}
			typed.Ints[col.Name] = parsed

		case ClassDate:
			parsed, err := time.Parse(DateLayout, value)
			if err != nil {
				return nil, &RowError{Line: row.Line, Reason: "date:" + col.Name, Raw: row.Raw}
			}
			typed.Dates[col.Name] = parsed
		}
	}

	return typed, nil
}

func withinSign(v float64, positive bool) bool {
	if positive {
		return v > 0
	}
	return v >= 0
}

// ValidateBatch validates every row and detects intra-batch duplicates on
// the schema's natural key. Valid rows come back in input order; rejected
// rows come back as accumulated errors, never as a thrown failure.
func ValidateBatch(rows []Row, schema Schema) ([]*TypedRow, []RowError) {
	valid := make([]*TypedRow, 0, len(rows))
	var errs []RowError

	var seen map[string]struct{}
	if schema.NaturalKey != "" {
		seen = make(map[string]struct{}, len(rows))
	}

	for _, row := range rows {
		typed, rowErr := ValidateRow(row, schema)
		if rowErr != nil {
			errs = append(errs, *rowErr)
			continue
		}

		if seen != nil {
			key := typed.Text[schema.NaturalKey]
			if _, dup := seen[key]; dup {
				errs = append(errs, RowError{Line: row.Line, Reason: "duplicate:" + schema.NaturalKey, Raw: row.Raw})
				continue
			}
			seen[key] = struct{}{}
		}

		valid = append(valid, typed)
	}

	return valid, errs
}

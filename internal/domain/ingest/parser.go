package ingest

import (
	"strings"

	"github.com/retailcore/noos-go/internal/domain/shared"
)

// Row is one data line of a parsed file. Line is the 1-indexed file line
// number including the header, so data row i carries Line = i+1 and error
// messages match what the user sees in their editor. Fields is empty when
// the line's field count did not match the header; validation then reports
// the row through the ordinary empty-field path.
type Row struct {
	Line   int
	Raw    []string
	Fields map[string]string
}

// Parse splits a TSV payload into rows for the given schema.
//
// The first line must tab-split into exactly the schema's header tokens,
// compared case-insensitively after trimming. Files with more than MaxRows
// data rows are rejected outright. Every field is trimmed; lines whose
// field count differs from the header yield a Row with no Fields.
func Parse(data []byte, schema Schema) ([]Row, error) {
	text := string(data)
	if text == "" {
		return nil, shared.NewValidationError("file is empty")
	}

	lines := strings.Split(text, "\n")
	// A trailing newline produces one empty final element; drop it.
	for len(lines) > 0 && strings.TrimRight(lines[len(lines)-1], "\r") == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return nil, shared.NewValidationError("file is empty")
	}

	expected := schema.Header()
	header := splitLine(lines[0])
	if !headerMatches(header, expected) {
		return nil, shared.Errorf(shared.KindValidation,
			"invalid header: expected %q", strings.Join(expected, "\t"))
	}

	if len(lines)-1 > MaxRows {
		return nil, shared.Errorf(shared.KindValidation,
			"file has %d rows, maximum is %d", len(lines)-1, MaxRows)
	}

	rows := make([]Row, 0, len(lines)-1)
	for i, line := range lines[1:] {
		raw := splitLine(line)
		row := Row{Line: i + 2, Raw: raw}
		if len(raw) == len(expected) {
			row.Fields = make(map[string]string, len(expected))
			for j, col := range schema.Columns {
				row.Fields[col.Name] = raw[j]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// splitLine tab-splits one line and trims each field (dropping any CR left
// by CRLF endings)
func splitLine(line string) []string {
	parts := strings.Split(strings.TrimRight(line, "\r"), "\t")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func headerMatches(got, expected []string) bool {
	if len(got) != len(expected) {
		return false
	}
	for i := range got {
		if !strings.EqualFold(got[i], expected[i]) {
			return false
		}
	}
	return true
}

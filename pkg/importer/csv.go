package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// csvTable reads a header-first CSV export.
type csvTable struct {
	reader   *csv.Reader
	header   []string
	colIndex map[string]int
	rowNum   int
}

// newCSVTable strips a UTF-8 BOM, reads the header and checks that the
// required column is present. Column names are matched case-insensitively.
func newCSVTable(data []byte, required string) (*csvTable, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := colIndex[strings.ToLower(required)]; !ok {
		return nil, fmt.Errorf("missing required column: %s", required)
	}

	return &csvTable{reader: reader, header: header, colIndex: colIndex, rowNum: 1}, nil
}

// next returns the next row as a column lookup. It reports io.EOF at the
// end; any other error is specific to the row and parsing may continue.
func (t *csvTable) next() (func(col string) string, error) {
	t.rowNum++
	row, err := t.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("row %d: failed to parse: %v", t.rowNum, err)
	}
	if len(row) != len(t.header) {
		return nil, fmt.Errorf("row %d: column count mismatch (expected %d, got %d)",
			t.rowNum, len(t.header), len(row))
	}

	return func(col string) string {
		if idx, ok := t.colIndex[strings.ToLower(col)]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}, nil
}

// each calls fn for every well-formed row and records a warning for the
// others.
func (t *csvTable) each(result *ImportResult, fn func(get func(string) string)) {
	for {
		get, err := t.next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			result.Warnings = append(result.Warnings, err.Error())
			continue
		}
		fn(get)
	}
}

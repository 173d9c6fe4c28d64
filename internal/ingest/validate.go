package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Parsed is a file that passed content validation.
type Parsed struct {
	Table       *Table
	Columns     ColumnMap
	Rows        []Row
	Fingerprint string
}

// TotalRows is the number of non-blank data rows that will be staged.
func (p *Parsed) TotalRows() int {
	return len(p.Rows)
}

// CheckFile validates the upload envelope: a .csv name and a non-empty body
// within maxBytes (0 disables the size check).
func CheckFile(filename string, size int64, maxBytes int64) error {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return &ValidationError{Reason: "File must be a CSV file (.csv extension required)"}
	}
	if size == 0 {
		return &EmptyContentError{Reason: "File is empty"}
	}
	if maxBytes > 0 && size > maxBytes {
		return &ValidationError{Reason: fmt.Sprintf("File size (%.2fMB) exceeds maximum allowed size (%.2fMB)",
			float64(size)/(1<<20), float64(maxBytes)/(1<<20))}
	}
	return nil
}

// Parse runs detection, header mapping and normalization over raw bytes. It
// fails fast with a typed error and has no side effects.
func Parse(data []byte) (*Parsed, error) {
	table, err := Detect(data)
	if err != nil {
		return nil, err
	}
	cols, err := MapHeaders(table.Header)
	if err != nil {
		return nil, err
	}
	rows := NormalizeRows(table, cols)
	if len(rows) == 0 {
		return nil, &EmptyContentError{Reason: "CSV file has no data rows (only header)"}
	}
	return &Parsed{
		Table:       table,
		Columns:     cols,
		Rows:        rows,
		Fingerprint: Fingerprint(data),
	}, nil
}

package ingest

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/IngestDrop/internal/model"
)

// Row holds the four canonical values of a data row after normalization.
type Row struct {
	Line      int
	Email     string
	FirstName string
	LastName  string
	Company   string
}

// Empty reports whether every canonical value is blank.
func (r Row) Empty() bool {
	return r.Email == "" && r.FirstName == "" && r.LastName == "" && r.Company == ""
}

// NormalizeEmail trims and lower-cases an address; the stored value is the
// normalized one since duplicate detection compares it.
func NormalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// NormalizeRows extracts the canonical values of every data row. Rows that
// are blank across all four fields are skipped.
func NormalizeRows(table *Table, cols ColumnMap) []Row {
	rows := make([]Row, 0, len(table.Rows))
	for i, record := range table.Rows {
		row := Row{
			Email:     NormalizeEmail(cols.Value(record, FieldEmail)),
			FirstName: strings.TrimSpace(cols.Value(record, FieldFirstName)),
			LastName:  strings.TrimSpace(cols.Value(record, FieldLastName)),
			Company:   strings.TrimSpace(cols.Value(record, FieldCompany)),
		}
		if row.Empty() {
			continue
		}
		if i < len(table.Lines) {
			row.Line = table.Lines[i]
		}
		rows = append(rows, row)
	}
	return rows
}

// StageRows turns normalized rows into PENDING staging records. Identical
// rows share a hash and are told apart by their occurrence ordinal, so the
// same file always maps onto the same (hash, occurrence) identities.
func StageRows(jobID string, rows []Row, now time.Time) []model.StagingRecord {
	seen := make(map[string]int, len(rows))
	out := make([]model.StagingRecord, len(rows))
	for i, row := range rows {
		h := RowHash(jobID, row)
		out[i] = model.StagingRecord{
			ID:            uuid.NewString(),
			JobID:         jobID,
			RowNumber:     row.Line,
			Email:         row.Email,
			FirstName:     row.FirstName,
			LastName:      row.LastName,
			Company:       row.Company,
			Status:        model.StagingPending,
			RowHash:       h,
			RowOccurrence: seen[h],
			CreatedAt:     now,
		}
		seen[h]++
	}
	return out
}

package main

import (
	"encoding/json"
	"io"
	"sort"
	"time"

	"github.com/dharsanguruparan/IngestDrop/internal/ingest"
	"github.com/dharsanguruparan/IngestDrop/internal/model"
	"github.com/dharsanguruparan/IngestDrop/internal/processing"
)

type checkIssue struct {
	Type        model.IssueType `json:"type"`
	Description string          `json:"description"`
	Rows        []int           `json:"rows"`
}

type checkReport struct {
	File      string       `json:"file"`
	Encoding  string       `json:"encoding"`
	Delimiter string       `json:"delimiter"`
	TotalRows int          `json:"total_rows"`
	Status    string       `json:"status"`
	Issues    []checkIssue `json:"issues"`
}

// checkFile runs validation, normalization and issue detection in memory.
// Nothing is stored, so duplicate-file detection does not apply.
func checkFile(name string, data []byte, maxBytes int64, opts processing.Options, existing []string) (*checkReport, error) {
	if err := ingest.CheckFile(name, int64(len(data)), maxBytes); err != nil {
		return nil, err
	}
	parsed, err := ingest.Parse(data)
	if err != nil {
		return nil, err
	}
	const jobID = "dry-run"
	records := ingest.StageRows(jobID, parsed.Rows, time.Now().UTC())
	lines := make(map[string]int, len(records))
	for _, r := range records {
		lines[r.ID] = r.RowNumber
	}
	emails := make(map[string]bool, len(existing))
	for _, e := range existing {
		emails[ingest.NormalizeEmail(e)] = true
	}

	findings := ingest.DetectIssues(jobID, records, ingest.DetectOptions{
		RequiredFields:   opts.RequiredFields,
		CheckEmailSyntax: opts.CheckEmailSyntax,
		ExistingEmails:   emails,
	})
	report := &checkReport{
		File:      name,
		Encoding:  parsed.Table.Encoding,
		Delimiter: parsed.Table.DelimiterName(),
		TotalRows: parsed.TotalRows(),
		Status:    string(model.JobCompleted),
		Issues:    make([]checkIssue, 0, len(findings)),
	}
	for _, f := range findings {
		rows := make([]int, 0, len(f.StagingIDs))
		for _, id := range f.StagingIDs {
			rows = append(rows, lines[id])
		}
		sort.Ints(rows)
		report.Issues = append(report.Issues, checkIssue{Type: f.Type, Description: f.Description, Rows: rows})
	}
	if len(findings) > 0 {
		report.Status = string(model.JobNeedsReview)
	}
	return report, nil
}

func (r *checkReport) write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

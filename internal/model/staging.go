package model

import "time"

// StagingStatus tracks where a normalized row stands in review.
type StagingStatus string

const (
	StagingPending StagingStatus = "PENDING"
	StagingReady   StagingStatus = "READY"
	StagingIssue   StagingStatus = "ISSUE"
	StagingDiscard StagingStatus = "DISCARD"
)

// Valid reports whether s is one of the known staging statuses.
func (s StagingStatus) Valid() bool {
	switch s {
	case StagingPending, StagingReady, StagingIssue, StagingDiscard:
		return true
	}
	return false
}

// StagingRecord is one normalized data row of a job. RowHash and
// RowOccurrence identify the source row for idempotent re-ingestion and are
// never serialized.
type StagingRecord struct {
	ID            string        `json:"staging_id"`
	JobID         string        `json:"staging_job_id"`
	RowNumber     int           `json:"staging_row_number"`
	Email         string        `json:"staging_email"`
	FirstName     string        `json:"staging_first_name"`
	LastName      string        `json:"staging_last_name"`
	Company       string        `json:"staging_company"`
	Status        StagingStatus `json:"staging_status"`
	RowHash       string        `json:"-"`
	RowOccurrence int           `json:"-"`
	CreatedAt     time.Time     `json:"staging_created_at"`
}

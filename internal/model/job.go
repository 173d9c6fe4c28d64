// Package model contains the records shared by the pipeline, the stores and the API.
package model

import (
	"time"
)

// JobStatus describes the ingestion lifecycle. Declaring it as a named string
// type keeps statuses from being mixed up with arbitrary strings.
type JobStatus string

const (
	JobPending     JobStatus = "PENDING"
	JobProcessing  JobStatus = "PROCESSING"
	JobNeedsReview JobStatus = "NEEDS_REVIEW"
	JobCompleted   JobStatus = "COMPLETED"
	JobFailed      JobStatus = "FAILED"
)

// Valid reports whether s is one of the known job statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobProcessing, JobNeedsReview, JobCompleted, JobFailed:
		return true
	}
	return false
}

// Job is one ingestion attempt of an uploaded file.
type Job struct {
	ID               string    `json:"job_id"`
	UserID           string    `json:"job_user_id"`
	OriginalFilename string    `json:"job_original_filename"`
	ObjectKey        string    `json:"job_s3_object_key"`
	// Fingerprint is the content hash of the raw upload and stays internal.
	Fingerprint   string     `json:"-"`
	TotalRows     int        `json:"job_total_rows"`
	ProcessedRows int        `json:"job_processed_rows"`
	IssueCount    int        `json:"job_issue_count"`
	Status        JobStatus  `json:"job_status"`
	ErrorMessage  *string    `json:"job_error_message,omitempty"`
	CreatedAt     time.Time  `json:"job_created_at"`
	UpdatedAt     time.Time  `json:"job_updated_at"`
	ProcessStart  *time.Time `json:"job_process_start,omitempty"`
	ProcessEnd    *time.Time `json:"job_process_end,omitempty"`
}

// StatusStrings converts statuses for use in SQL ANY($n) filters.
func StatusStrings(statuses []JobStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

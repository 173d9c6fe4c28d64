package model

import "time"

// IssueType tags the data-quality condition an Issue describes.
type IssueType string

const (
	IssueDuplicateEmail IssueType = "DUPLICATE_EMAIL"
	IssueMissingField   IssueType = "MISSING_REQUIRED_FIELD"
	IssueInvalidEmail   IssueType = "INVALID_EMAIL"
	IssueExistingEmail  IssueType = "EXISTING_EMAIL"
)

// Issue is a detected problem spanning one or more staging rows of a job.
type Issue struct {
	ID                string     `json:"issue_id"`
	JobID             string     `json:"issues_job_id"`
	Type              IssueType  `json:"issue_type"`
	Description       string     `json:"issue_description"`
	Resolved          bool       `json:"issue_resolved"`
	ResolvedAt        *time.Time `json:"issue_resolved_at"`
	ResolvedBy        *string    `json:"issue_resolved_by"`
	ResolutionComment *string    `json:"issue_resolution_comment"`
	// Key is the idempotency key; it is derived, never user-facing.
	Key          string          `json:"-"`
	CreatedAt    time.Time       `json:"issue_created_at"`
	AffectedRows []StagingRecord `json:"affected_rows"`
}

// IssueItem links an Issue to one StagingRecord of the same job.
type IssueItem struct {
	ID        string `json:"issue_item_id"`
	IssueID   string `json:"item_issue_id"`
	StagingID string `json:"item_staging_id"`
	JobID     string `json:"-"`
}

// IssueCounts summarizes resolution progress for a listing.
type IssueCounts struct {
	Total      int `json:"total"`
	Resolved   int `json:"resolved_count"`
	Unresolved int `json:"unresolved_count"`
}

// CountIssues tallies resolved and unresolved issues.
func CountIssues(issues []Issue) IssueCounts {
	c := IssueCounts{Total: len(issues)}
	for _, is := range issues {
		if is.Resolved {
			c.Resolved++
		}
	}
	c.Unresolved = c.Total - c.Resolved
	return c
}

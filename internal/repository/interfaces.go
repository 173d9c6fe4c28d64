package repository

import (
	"context"
	"errors"

	"github.com/dharsanguruparan/IngestDrop/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist (or is not
	// visible to the requesting user).
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a uniqueness constraint rejects an insert.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStatusConflict is returned when a conditional status change finds the
	// job in a status it does not accept.
	ErrStatusConflict = errors.New("job status conflict")
)

// JobStore persists jobs. Fingerprints are unique per user.
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	GetJobForUser(ctx context.Context, id, userID string) (*model.Job, error)
	FindJobByFingerprint(ctx context.Context, userID, fingerprint string) (*model.Job, error)
	ListJobs(ctx context.Context, userID string) ([]model.Job, error)
	// StartJob moves a job to PROCESSING when its status is one of from and
	// returns ErrStatusConflict otherwise.
	StartJob(ctx context.Context, id string, from []model.JobStatus) (*model.Job, error)
	FinishJob(ctx context.Context, id string, status model.JobStatus, processedRows, issueCount int) error
	FailJob(ctx context.Context, id string, message string) error
	// DeleteJob removes issue items, issues, staging rows and the job in one
	// transaction, provided the job is in one of allowed.
	DeleteJob(ctx context.Context, id string, allowed []model.JobStatus) error
}

// StagingStore persists staging rows. (job_id, row_hash, row_occurrence) is
// unique; re-inserting an existing identity is a no-op.
type StagingStore interface {
	InsertStaging(ctx context.Context, records []model.StagingRecord) (int64, error)
	ListStaging(ctx context.Context, jobID string) ([]model.StagingRecord, error)
	GetStaging(ctx context.Context, id, userID string) (*model.StagingRecord, error)
	UpdateStaging(ctx context.Context, rec *model.StagingRecord) error
	// ApplyStagingStatuses marks flagged rows ISSUE and every other
	// non-discarded row of the job READY.
	ApplyStagingStatuses(ctx context.Context, jobID string, flagged []string) error
}

// IssueStore persists issues and their items. (job_id, issue_key) is unique.
type IssueStore interface {
	// CreateIssue inserts the issue and its items unless an issue with the
	// same key exists for the job, in which case it reports created=false.
	CreateIssue(ctx context.Context, issue *model.Issue, stagingIDs []string) (bool, error)
	GetIssue(ctx context.Context, id, userID string) (*model.Issue, error)
	ListIssuesByJob(ctx context.Context, jobID string) ([]model.Issue, error)
	ListIssuesByUser(ctx context.Context, userID string) ([]model.Issue, error)
	UpdateIssueResolution(ctx context.Context, issue *model.Issue) error
	CountUnresolvedIssues(ctx context.Context, jobID string) (int, error)
	UnresolvedStagingIDs(ctx context.Context, jobID string) ([]string, error)
}

// ContactStore reads promoted contacts.
type ContactStore interface {
	ListContacts(ctx context.Context, userID string) ([]model.Contact, error)
	GetContactByEmail(ctx context.Context, userID, email string) (*model.Contact, error)
	ContactEmails(ctx context.Context, userID string) (map[string]bool, error)
}

// Store groups every persistence concern of the service.
type Store interface {
	JobStore
	StagingStore
	IssueStore
	ContactStore
}

// Package lifecycle holds the job state rules and the merge rules for editor
// patches on issues and staging rows.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/dharsanguruparan/IngestDrop/internal/model"
)

// ErrNotFound is returned for missing records and for records owned by
// another user; callers cannot tell the two apart.
var ErrNotFound = errors.New("not found")

// Processable lists the statuses from which a job may (re-)enter PROCESSING.
var Processable = []model.JobStatus{model.JobPending, model.JobNeedsReview, model.JobFailed}

// Deletable lists the statuses from which a job may be deleted.
var Deletable = []model.JobStatus{model.JobPending, model.JobNeedsReview, model.JobFailed}

// PolicyError rejects an operation the job's current status does not allow.
type PolicyError struct {
	Op     string
	JobID  string
	Status model.JobStatus
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("cannot %s job %s in status %s", e.Op, e.JobID, e.Status)
}

func contains(statuses []model.JobStatus, s model.JobStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// CheckProcess allows processing and reprocessing from PENDING, NEEDS_REVIEW
// or FAILED.
func CheckProcess(job *model.Job) error {
	if contains(Processable, job.Status) {
		return nil
	}
	return &PolicyError{Op: "reprocess", JobID: job.ID, Status: job.Status}
}

// CheckDelete allows deletion from PENDING, NEEDS_REVIEW or FAILED.
// COMPLETED and PROCESSING jobs are protected.
func CheckDelete(job *model.Job) error {
	if contains(Deletable, job.Status) {
		return nil
	}
	return &PolicyError{Op: "delete", JobID: job.ID, Status: job.Status}
}

// FinalStatus is the status a finished run settles on.
func FinalStatus(unresolvedIssues int) model.JobStatus {
	if unresolvedIssues > 0 {
		return model.JobNeedsReview
	}
	return model.JobCompleted
}

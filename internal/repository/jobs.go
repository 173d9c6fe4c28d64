package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/dharsanguruparan/IngestDrop/internal/model"
)

const jobColumns = `id, user_id, original_filename, object_key, fingerprint, total_rows, processed_rows,
	issue_count, status, error_message, created_at, updated_at, process_start, process_end`

func scanJob(row pgx.Row) (*model.Job, error) {
	var job model.Job
	err := row.Scan(&job.ID, &job.UserID, &job.OriginalFilename, &job.ObjectKey, &job.Fingerprint,
		&job.TotalRows, &job.ProcessedRows, &job.IssueCount, &job.Status, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.ProcessStart, &job.ProcessEnd)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJob inserts a PENDING job. A second job with the same fingerprint for
// the same user fails with ErrDuplicate.
func (r *Repository) CreateJob(ctx context.Context, job *model.Job) error {
	now := r.now()
	job.Status = model.JobPending
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `
		INSERT INTO jobs (id, user_id, original_filename, object_key, fingerprint, total_rows,
			processed_rows, issue_count, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,0,$7,$8,$9)
	`, job.ID, job.UserID, job.OriginalFilename, job.ObjectKey, job.Fingerprint, job.TotalRows,
		string(job.Status), job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicate, "repository: job fingerprint for user %s", job.UserID)
		}
		return eris.Wrap(err, "repository: insert job")
	}
	return nil
}

// GetJob returns a job by id regardless of owner. Only the worker uses it.
func (r *Repository) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "repository: job %s", id)
		}
		return nil, eris.Wrap(err, "repository: select job")
	}
	return job, nil
}

// GetJobForUser returns a job owned by userID.
func (r *Repository) GetJobForUser(ctx context.Context, id, userID string) (*model.Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id=$1 AND user_id=$2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "repository: job %s", id)
		}
		return nil, eris.Wrap(err, "repository: select job")
	}
	return job, nil
}

// FindJobByFingerprint returns the user's job holding fingerprint, or
// ErrNotFound.
func (r *Repository) FindJobByFingerprint(ctx context.Context, userID, fingerprint string) (*model.Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE user_id=$1 AND fingerprint=$2`, userID, fingerprint))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrap(ErrNotFound, "repository: job by fingerprint")
		}
		return nil, eris.Wrap(err, "repository: select job by fingerprint")
	}
	return job, nil
}

// ListJobs returns the user's jobs, newest first.
func (r *Repository) ListJobs(ctx context.Context, userID string) ([]model.Job, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, eris.Wrap(err, "repository: list jobs")
	}
	defer rows.Close()
	jobs := []model.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "repository: scan job")
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repository: list jobs")
	}
	return jobs, nil
}

// StartJob atomically moves the job to PROCESSING, clearing any previous
// error and stamping process_start. Two concurrent starts cannot both win.
func (r *Repository) StartJob(ctx context.Context, id string, from []model.JobStatus) (*model.Job, error) {
	now := r.now()
	job, err := scanJob(r.pool.QueryRow(ctx, `
		UPDATE jobs
		SET status=$1, error_message=NULL, process_start=$2, process_end=NULL, updated_at=$2
		WHERE id=$3 AND status = ANY($4)
		RETURNING `+jobColumns,
		string(model.JobProcessing), now, id, model.StatusStrings(from)))
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(err, "repository: start job")
	}
	// Tell a missing job apart from one in the wrong status.
	if _, getErr := r.GetJob(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, eris.Wrapf(ErrStatusConflict, "repository: start job %s", id)
}

// FinishJob records the outcome of a successful run.
func (r *Repository) FinishJob(ctx context.Context, id string, status model.JobStatus, processedRows, issueCount int) error {
	now := r.now()
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status=$1, processed_rows=$2, issue_count=$3, error_message=NULL, process_end=$4, updated_at=$4
		WHERE id=$5
	`, string(status), processedRows, issueCount, now, id)
	if err != nil {
		return eris.Wrap(err, "repository: finish job")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "repository: job %s", id)
	}
	return nil
}

// FailJob marks the job FAILED and stores the message.
func (r *Repository) FailJob(ctx context.Context, id string, message string) error {
	now := r.now()
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status=$1, error_message=$2, process_end=$3, updated_at=$3
		WHERE id=$4
	`, string(model.JobFailed), message, now, id)
	if err != nil {
		return eris.Wrap(err, "repository: fail job")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "repository: job %s", id)
	}
	return nil
}

// DeleteJob removes the job and everything hanging off it, children first.
// The job row is locked for the duration so a concurrent StartJob either
// runs before (and the status check fails) or blocks until the rows are gone.
func (r *Repository) DeleteJob(ctx context.Context, id string, allowed []model.JobStatus) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "repository: delete job: begin tx")
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id=$1 FOR UPDATE`, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(ErrNotFound, "repository: job %s", id)
		}
		return eris.Wrap(err, "repository: delete job: lock")
	}
	permitted := false
	for _, s := range allowed {
		if string(s) == status {
			permitted = true
			break
		}
	}
	if !permitted {
		return eris.Wrapf(ErrStatusConflict, "repository: delete job %s in status %s", id, status)
	}

	for _, stmt := range []string{
		`DELETE FROM issue_items WHERE job_id=$1`,
		`DELETE FROM issues WHERE job_id=$1`,
		`DELETE FROM staging_records WHERE job_id=$1`,
		`DELETE FROM jobs WHERE id=$1`,
	} {
		if _, err := tx.Exec(ctx, stmt, id); err != nil {
			return eris.Wrap(err, "repository: delete job")
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "repository: delete job: commit")
	}
	return nil
}

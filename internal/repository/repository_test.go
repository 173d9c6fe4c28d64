package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/IngestDrop/internal/model"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockRepo(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	repo := NewRepository(mock)
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func jobRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "user_id", "original_filename", "object_key", "fingerprint", "total_rows", "processed_rows",
		"issue_count", "status", "error_message", "created_at", "updated_at", "process_start", "process_end",
	})
}

func TestCreateJob(t *testing.T) {
	repo, mock := newMockRepo(t)
	job := &model.Job{ID: "job-1", UserID: "u1", OriginalFilename: "a.csv", ObjectKey: "k", Fingerprint: "fp", TotalRows: 3}

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs("job-1", "u1", "a.csv", "k", "fp", 3, "PENDING", fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.CreateJob(context.Background(), job))
	assert.Equal(t, model.JobPending, job.Status)
	assert.Equal(t, fixedNow, job.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJob_DuplicateFingerprint(t *testing.T) {
	repo, mock := newMockRepo(t)
	job := &model.Job{ID: "job-2", UserID: "u1", OriginalFilename: "b.csv", ObjectKey: "k2", Fingerprint: "fp", TotalRows: 1}

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs("job-2", "u1", "b.csv", "k2", "fp", 1, "PENDING", fixedNow, fixedNow).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "jobs_user_id_fingerprint_key"})

	err := repo.CreateJob(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobForUser_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT .* FROM jobs WHERE id=\\$1 AND user_id=\\$2").
		WithArgs("job-1", "someone-else").
		WillReturnRows(jobRows())

	_, err := repo.GetJobForUser(context.Background(), "job-1", "someone-else")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobs(t *testing.T) {
	repo, mock := newMockRepo(t)
	msg := "boom"

	mock.ExpectQuery("SELECT .* FROM jobs WHERE user_id=\\$1 ORDER BY created_at DESC").
		WithArgs("u1").
		WillReturnRows(jobRows().
			AddRow("job-2", "u1", "b.csv", "k2", "fp2", 2, 2, 0, "COMPLETED", nil, fixedNow, fixedNow, &fixedNow, &fixedNow).
			AddRow("job-1", "u1", "a.csv", "k1", "fp1", 5, 0, 0, "FAILED", &msg, fixedNow, fixedNow, nil, nil))

	jobs, err := repo.ListJobs(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, model.JobCompleted, jobs[0].Status)
	assert.Nil(t, jobs[0].ErrorMessage)
	assert.Equal(t, model.JobFailed, jobs[1].Status)
	require.NotNil(t, jobs[1].ErrorMessage)
	assert.Equal(t, "boom", *jobs[1].ErrorMessage)
	assert.Nil(t, jobs[1].ProcessStart)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartJob(t *testing.T) {
	repo, mock := newMockRepo(t)
	from := model.StatusStrings([]model.JobStatus{model.JobPending, model.JobFailed})

	mock.ExpectQuery("UPDATE jobs").
		WithArgs("PROCESSING", fixedNow, "job-1", from).
		WillReturnRows(jobRows().
			AddRow("job-1", "u1", "a.csv", "k1", "fp1", 5, 0, 0, "PROCESSING", nil, fixedNow, fixedNow, &fixedNow, nil))

	job, err := repo.StartJob(context.Background(), "job-1", []model.JobStatus{model.JobPending, model.JobFailed})
	require.NoError(t, err)
	assert.Equal(t, model.JobProcessing, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartJob_StatusConflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	from := model.StatusStrings([]model.JobStatus{model.JobPending})

	mock.ExpectQuery("UPDATE jobs").
		WithArgs("PROCESSING", fixedNow, "job-1", from).
		WillReturnRows(jobRows())
	mock.ExpectQuery("SELECT .* FROM jobs WHERE id=\\$1").
		WithArgs("job-1").
		WillReturnRows(jobRows().
			AddRow("job-1", "u1", "a.csv", "k1", "fp1", 5, 5, 0, "COMPLETED", nil, fixedNow, fixedNow, &fixedNow, &fixedNow))

	_, err := repo.StartJob(context.Background(), "job-1", []model.JobStatus{model.JobPending})
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteJob_RemovesChildrenFirst(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM jobs WHERE id=\\$1 FOR UPDATE").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("NEEDS_REVIEW"))
	mock.ExpectExec("DELETE FROM issue_items").WithArgs("job-1").WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("DELETE FROM issues").WithArgs("job-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM staging_records").WithArgs("job-1").WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec("DELETE FROM jobs").WithArgs("job-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := repo.DeleteJob(context.Background(), "job-1", []model.JobStatus{model.JobPending, model.JobNeedsReview, model.JobFailed})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteJob_ProtectedStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM jobs WHERE id=\\$1 FOR UPDATE").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("COMPLETED"))
	mock.ExpectRollback()

	err := repo.DeleteJob(context.Background(), "job-1", []model.JobStatus{model.JobPending, model.JobNeedsReview, model.JobFailed})
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertStaging_SkipsExistingIdentities(t *testing.T) {
	repo, mock := newMockRepo(t)
	records := []model.StagingRecord{
		{ID: "s1", JobID: "job-1", RowNumber: 2, Email: "a@x.com", FirstName: "A", LastName: "B", Company: "C",
			Status: model.StagingPending, RowHash: "h1", RowOccurrence: 0, CreatedAt: fixedNow},
		{ID: "s2", JobID: "job-1", RowNumber: 3, Email: "a@x.com", FirstName: "A", LastName: "B", Company: "C",
			Status: model.StagingPending, RowHash: "h1", RowOccurrence: 1, CreatedAt: fixedNow},
	}

	mock.ExpectExec(regexp.QuoteMeta("($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11),($12,") + ".*ON CONFLICT \\(job_id, row_hash, row_occurrence\\) DO NOTHING").
		WithArgs(
			"s1", "job-1", 2, "a@x.com", "A", "B", "C", "PENDING", "h1", 0, fixedNow,
			"s2", "job-1", 3, "a@x.com", "A", "B", "C", "PENDING", "h1", 1, fixedNow,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := repo.InsertStaging(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertStaging_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)
	n, err := repo.InsertStaging(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStagingStatuses_LeavesDiscardAlone(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE staging_records\\s+SET status = CASE").
		WithArgs("job-1", []string{"s1"}, "ISSUE", "READY", "DISCARD").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	require.NoError(t, repo.ApplyStagingStatuses(context.Background(), "job-1", []string{"s1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIssue(t *testing.T) {
	repo, mock := newMockRepo(t)
	issue := &model.Issue{ID: "i1", JobID: "job-1", Type: model.IssueDuplicateEmail, Description: "dup", Key: "key"}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO issues").
		WithArgs("i1", "job-1", "DUPLICATE_EMAIL", "dup", "key", fixedNow).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("i1"))
	mock.ExpectExec("INSERT INTO issue_items").
		WithArgs(pgxmock.AnyArg(), "i1", "s1", "job-1", pgxmock.AnyArg(), "i1", "s2", "job-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	created, err := repo.CreateIssue(context.Background(), issue, []string{"s1", "s2"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIssue_ExistingKeyIsNoop(t *testing.T) {
	repo, mock := newMockRepo(t)
	issue := &model.Issue{ID: "i2", JobID: "job-1", Type: model.IssueDuplicateEmail, Description: "dup", Key: "key"}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO issues").
		WithArgs("i2", "job-1", "DUPLICATE_EMAIL", "dup", "key", fixedNow).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	created, err := repo.CreateIssue(context.Background(), issue, []string{"s1", "s2"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUnresolvedIssues(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM issues WHERE job_id=\\$1 AND NOT resolved").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.CountUnresolvedIssues(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactEmails(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT email FROM contacts WHERE user_id=\\$1").
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"email"}).AddRow("a@x.com").AddRow("b@x.com"))

	emails, err := repo.ContactEmails(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a@x.com": true, "b@x.com": true}, emails)
	assert.NoError(t, mock.ExpectationsWereMet())
}

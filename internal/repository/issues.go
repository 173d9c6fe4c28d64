package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/dharsanguruparan/IngestDrop/internal/model"
)

const issueColumns = `i.id, i.job_id, i.issue_type, i.description, i.resolved, i.resolved_at,
	i.resolved_by, i.resolution_comment, i.issue_key, i.created_at`

func scanIssue(row pgx.Row) (*model.Issue, error) {
	var is model.Issue
	err := row.Scan(&is.ID, &is.JobID, &is.Type, &is.Description, &is.Resolved, &is.ResolvedAt,
		&is.ResolvedBy, &is.ResolutionComment, &is.Key, &is.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &is, nil
}

// CreateIssue inserts the issue and its items in one transaction. An issue
// whose key already exists for the job is left untouched.
func (r *Repository) CreateIssue(ctx context.Context, issue *model.Issue, stagingIDs []string) (bool, error) {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	issue.CreatedAt = r.now()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, eris.Wrap(err, "repository: create issue: begin tx")
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO issues (id, job_id, issue_type, description, resolved, issue_key, created_at)
		VALUES ($1,$2,$3,$4,FALSE,$5,$6)
		ON CONFLICT (job_id, issue_key) DO NOTHING
		RETURNING id
	`, issue.ID, issue.JobID, string(issue.Type), issue.Description, issue.Key, issue.CreatedAt).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "repository: insert issue")
	}

	if len(stagingIDs) > 0 {
		var (
			sb   strings.Builder
			args = make([]any, 0, len(stagingIDs)*4)
		)
		sb.WriteString(`INSERT INTO issue_items (id, issue_id, staging_id, job_id) VALUES `)
		for i, sid := range stagingIDs {
			if i > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d)", i*4+1, i*4+2, i*4+3, i*4+4)
			args = append(args, uuid.NewString(), id, sid, issue.JobID)
		}
		if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
			return false, eris.Wrap(err, "repository: insert issue items")
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return false, eris.Wrap(err, "repository: create issue: commit")
	}
	return true, nil
}

// GetIssue returns an issue with its affected rows when its job belongs to
// userID.
func (r *Repository) GetIssue(ctx context.Context, id, userID string) (*model.Issue, error) {
	is, err := scanIssue(r.pool.QueryRow(ctx, `SELECT `+issueColumns+`
		FROM issues i JOIN jobs j ON j.id = i.job_id
		WHERE i.id=$1 AND j.user_id=$2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "repository: issue %s", id)
		}
		return nil, eris.Wrap(err, "repository: select issue")
	}
	affected, err := r.affectedRows(ctx, `ii.issue_id=$1`, id)
	if err != nil {
		return nil, err
	}
	is.AffectedRows = affected[is.ID]
	if is.AffectedRows == nil {
		is.AffectedRows = []model.StagingRecord{}
	}
	return is, nil
}

// ListIssuesByJob returns a job's issues, oldest first, with affected rows.
func (r *Repository) ListIssuesByJob(ctx context.Context, jobID string) ([]model.Issue, error) {
	return r.listIssues(ctx, `i.job_id=$1`, `ii.job_id=$1`, jobID)
}

// ListIssuesByUser returns issues across every job of the user.
func (r *Repository) ListIssuesByUser(ctx context.Context, userID string) ([]model.Issue, error) {
	return r.listIssues(ctx, `j.user_id=$1`, `j.user_id=$1`, userID)
}

func (r *Repository) listIssues(ctx context.Context, issueFilter, itemFilter string, arg string) ([]model.Issue, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+issueColumns+`
		FROM issues i JOIN jobs j ON j.id = i.job_id
		WHERE `+issueFilter+` ORDER BY i.created_at, i.id`, arg)
	if err != nil {
		return nil, eris.Wrap(err, "repository: list issues")
	}
	issues := []model.Issue{}
	for rows.Next() {
		is, err := scanIssue(rows)
		if err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "repository: scan issue")
		}
		issues = append(issues, *is)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repository: list issues")
	}
	if len(issues) == 0 {
		return issues, nil
	}

	affected, err := r.affectedRows(ctx, itemFilter, arg)
	if err != nil {
		return nil, err
	}
	for i := range issues {
		issues[i].AffectedRows = affected[issues[i].ID]
		if issues[i].AffectedRows == nil {
			issues[i].AffectedRows = []model.StagingRecord{}
		}
	}
	return issues, nil
}

// affectedRows loads staging rows through issue_items, keyed by issue id.
func (r *Repository) affectedRows(ctx context.Context, filter string, arg string) (map[string][]model.StagingRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT ii.issue_id, `+stagingColumns+`
		FROM issue_items ii
		JOIN staging_records s ON s.id = ii.staging_id
		JOIN jobs j ON j.id = ii.job_id
		WHERE `+filter+` ORDER BY s.row_number, s.row_occurrence`, arg)
	if err != nil {
		return nil, eris.Wrap(err, "repository: list issue items")
	}
	defer rows.Close()
	out := make(map[string][]model.StagingRecord)
	for rows.Next() {
		var (
			issueID string
			rec     model.StagingRecord
		)
		err := rows.Scan(&issueID, &rec.ID, &rec.JobID, &rec.RowNumber, &rec.Email, &rec.FirstName,
			&rec.LastName, &rec.Company, &rec.Status, &rec.RowHash, &rec.RowOccurrence, &rec.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "repository: scan issue item")
		}
		out[issueID] = append(out[issueID], rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repository: list issue items")
	}
	return out, nil
}

// UpdateIssueResolution stores the resolution fields of issue.
func (r *Repository) UpdateIssueResolution(ctx context.Context, issue *model.Issue) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE issues
		SET resolved=$1, resolved_at=$2, resolved_by=$3, resolution_comment=$4
		WHERE id=$5
	`, issue.Resolved, issue.ResolvedAt, issue.ResolvedBy, issue.ResolutionComment, issue.ID)
	if err != nil {
		return eris.Wrap(err, "repository: update issue")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "repository: issue %s", issue.ID)
	}
	return nil
}

// CountUnresolvedIssues counts the job's open issues.
func (r *Repository) CountUnresolvedIssues(ctx context.Context, jobID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM issues WHERE job_id=$1 AND NOT resolved`, jobID).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "repository: count issues")
	}
	return n, nil
}

// UnresolvedStagingIDs lists staging rows referenced by at least one open
// issue of the job.
func (r *Repository) UnresolvedStagingIDs(ctx context.Context, jobID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ii.staging_id
		FROM issue_items ii JOIN issues i ON i.id = ii.issue_id
		WHERE ii.job_id=$1 AND NOT i.resolved
		ORDER BY ii.staging_id
	`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "repository: unresolved staging ids")
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "repository: scan staging id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repository: unresolved staging ids")
	}
	return ids, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/dharsanguruparan/IngestDrop/internal/model"
)

const stagingColumns = `s.id, s.job_id, s.row_number, s.email, s.first_name, s.last_name, s.company,
	s.status, s.row_hash, s.row_occurrence, s.created_at`

const stagingInsertColumns = 11

func scanStaging(row pgx.Row) (*model.StagingRecord, error) {
	var rec model.StagingRecord
	err := row.Scan(&rec.ID, &rec.JobID, &rec.RowNumber, &rec.Email, &rec.FirstName, &rec.LastName,
		&rec.Company, &rec.Status, &rec.RowHash, &rec.RowOccurrence, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertStaging writes one batch in a single statement. Rows whose
// (job_id, row_hash, row_occurrence) already exist are skipped, so re-running
// a job never duplicates staging rows. It returns the number inserted.
func (r *Repository) InsertStaging(ctx context.Context, records []model.StagingRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	var (
		sb   strings.Builder
		args = make([]any, 0, len(records)*stagingInsertColumns)
	)
	sb.WriteString(`INSERT INTO staging_records (id, job_id, row_number, email, first_name, last_name,
		company, status, row_hash, row_occurrence, created_at) VALUES `)
	for i, rec := range records {
		if i > 0 {
			sb.WriteString(",")
		}
		base := i * stagingInsertColumns
		sb.WriteString("(")
		for c := 1; c <= stagingInsertColumns; c++ {
			if c > 1 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "$%d", base+c)
		}
		sb.WriteString(")")
		args = append(args, rec.ID, rec.JobID, rec.RowNumber, rec.Email, rec.FirstName, rec.LastName,
			rec.Company, string(rec.Status), rec.RowHash, rec.RowOccurrence, rec.CreatedAt)
	}
	sb.WriteString(` ON CONFLICT (job_id, row_hash, row_occurrence) DO NOTHING`)

	tag, err := r.pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, eris.Wrap(err, "repository: insert staging")
	}
	return tag.RowsAffected(), nil
}

// ListStaging returns every staging row of a job in file order.
func (r *Repository) ListStaging(ctx context.Context, jobID string) ([]model.StagingRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stagingColumns+`
		FROM staging_records s WHERE s.job_id=$1 ORDER BY s.row_number, s.row_occurrence`, jobID)
	if err != nil {
		return nil, eris.Wrap(err, "repository: list staging")
	}
	defer rows.Close()
	out := []model.StagingRecord{}
	for rows.Next() {
		rec, err := scanStaging(rows)
		if err != nil {
			return nil, eris.Wrap(err, "repository: scan staging")
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repository: list staging")
	}
	return out, nil
}

// GetStaging returns a staging row whose job belongs to userID.
func (r *Repository) GetStaging(ctx context.Context, id, userID string) (*model.StagingRecord, error) {
	rec, err := scanStaging(r.pool.QueryRow(ctx, `SELECT `+stagingColumns+`
		FROM staging_records s JOIN jobs j ON j.id = s.job_id
		WHERE s.id=$1 AND j.user_id=$2`, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "repository: staging %s", id)
		}
		return nil, eris.Wrap(err, "repository: select staging")
	}
	return rec, nil
}

// UpdateStaging stores editor corrections. Hash and occurrence are never
// rewritten.
func (r *Repository) UpdateStaging(ctx context.Context, rec *model.StagingRecord) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE staging_records
		SET email=$1, first_name=$2, last_name=$3, company=$4, status=$5
		WHERE id=$6
	`, rec.Email, rec.FirstName, rec.LastName, rec.Company, string(rec.Status), rec.ID)
	if err != nil {
		return eris.Wrap(err, "repository: update staging")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "repository: staging %s", rec.ID)
	}
	return nil
}

// ApplyStagingStatuses flags rows referenced by unresolved issues and marks
// the rest READY. DISCARD rows keep their status.
func (r *Repository) ApplyStagingStatuses(ctx context.Context, jobID string, flagged []string) error {
	if flagged == nil {
		flagged = []string{}
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE staging_records
		SET status = CASE WHEN id = ANY($2) THEN $3 ELSE $4 END
		WHERE job_id=$1 AND status <> $5
	`, jobID, flagged, string(model.StagingIssue), string(model.StagingReady), string(model.StagingDiscard))
	if err != nil {
		return eris.Wrap(err, "repository: apply staging statuses")
	}
	return nil
}

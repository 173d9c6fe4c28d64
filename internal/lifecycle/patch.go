package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dharsanguruparan/IngestDrop/internal/ingest"
	"github.com/dharsanguruparan/IngestDrop/internal/model"
)

// ErrInvalidPatch rejects a patch carrying a value the record cannot take.
var ErrInvalidPatch = errors.New("invalid patch")

// IssuePatch carries the optional fields of an issue update. A nil field was
// not supplied.
type IssuePatch struct {
	Resolved          *bool      `json:"issue_resolved"`
	ResolvedAt        *time.Time `json:"issue_resolved_at"`
	ResolvedBy        *string    `json:"issue_resolved_by"`
	ResolutionComment *string    `json:"issue_resolution_comment"`
}

// ApplyIssuePatch merges patch into issue.
//
// A resolved issue always has resolved_at and resolved_by: supplied values
// win, then values already on the issue, then now and the acting user. An
// unresolved issue never has either, whatever the caller supplied.
func ApplyIssuePatch(issue model.Issue, patch IssuePatch, actor string, now time.Time) model.Issue {
	wasResolved := issue.Resolved
	if patch.Resolved != nil {
		issue.Resolved = *patch.Resolved
	}
	if patch.ResolutionComment != nil {
		comment := *patch.ResolutionComment
		issue.ResolutionComment = &comment
	}
	if !issue.Resolved {
		issue.ResolvedAt = nil
		issue.ResolvedBy = nil
		return issue
	}
	switch {
	case patch.ResolvedAt != nil:
		at := patch.ResolvedAt.UTC()
		issue.ResolvedAt = &at
	case !wasResolved || issue.ResolvedAt == nil:
		at := now.UTC()
		issue.ResolvedAt = &at
	}
	switch {
	case patch.ResolvedBy != nil && *patch.ResolvedBy != "":
		by := *patch.ResolvedBy
		issue.ResolvedBy = &by
	case !wasResolved || issue.ResolvedBy == nil:
		by := actor
		issue.ResolvedBy = &by
	}
	return issue
}

// StagingPatch carries the optional fields of an editor correction.
type StagingPatch struct {
	Email     *string              `json:"staging_email"`
	FirstName *string              `json:"staging_first_name"`
	LastName  *string              `json:"staging_last_name"`
	Company   *string              `json:"staging_company"`
	Status    *model.StagingStatus `json:"staging_status"`
}

// ApplyStagingPatch merges an editor correction into rec. Values are
// normalized the way ingestion normalizes them. The row hash is left alone:
// it identifies the source row, not the corrected content.
func ApplyStagingPatch(rec model.StagingRecord, patch StagingPatch) (model.StagingRecord, error) {
	if patch.Email != nil {
		rec.Email = ingest.NormalizeEmail(*patch.Email)
	}
	if patch.FirstName != nil {
		rec.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		rec.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.Company != nil {
		rec.Company = strings.TrimSpace(*patch.Company)
	}
	if patch.Status != nil {
		switch *patch.Status {
		case model.StagingReady, model.StagingIssue, model.StagingDiscard:
			rec.Status = *patch.Status
		default:
			return rec, fmt.Errorf("%w: staging status %q", ErrInvalidPatch, *patch.Status)
		}
	}
	return rec, nil
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/IngestDrop/internal/auth"
	"github.com/dharsanguruparan/IngestDrop/internal/ingest"
	"github.com/dharsanguruparan/IngestDrop/internal/lifecycle"
	"github.com/dharsanguruparan/IngestDrop/internal/model"
	"github.com/dharsanguruparan/IngestDrop/internal/repository"
)

// IssueList is a listing of issues with resolution counts.
type IssueList struct {
	Issues []model.Issue `json:"issues"`
	model.IssueCounts
}

func newIssueList(issues []model.Issue) *IssueList {
	if issues == nil {
		issues = []model.Issue{}
	}
	return &IssueList{Issues: issues, IssueCounts: model.CountIssues(issues)}
}

// Review handles issue resolution, staging corrections and contact reads.
type Review struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewReview wires the review use cases.
func NewReview(store repository.Store, logger *zap.Logger) *Review {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Review{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// JobIssues lists the issues of one of the actor's jobs.
func (s *Review) JobIssues(ctx context.Context, actor auth.Actor, jobID string) (*IssueList, error) {
	if _, err := s.store.GetJobForUser(ctx, jobID, actor.UserID); err != nil {
		return nil, visible(err)
	}
	issues, err := s.store.ListIssuesByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return newIssueList(issues), nil
}

// Issues lists issues across all of the actor's jobs.
func (s *Review) Issues(ctx context.Context, actor auth.Actor) (*IssueList, error) {
	issues, err := s.store.ListIssuesByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return newIssueList(issues), nil
}

// Issue returns one issue with its affected rows.
func (s *Review) Issue(ctx context.Context, actor auth.Actor, issueID string) (*model.Issue, error) {
	issue, err := s.store.GetIssue(ctx, issueID, actor.UserID)
	if err != nil {
		return nil, visible(err)
	}
	return issue, nil
}

// UpdateIssue resolves or unresolves an issue. Resolving never changes the
// job status; the next processing run settles it.
func (s *Review) UpdateIssue(ctx context.Context, actor auth.Actor, issueID string, patch lifecycle.IssuePatch) (*model.Issue, error) {
	if err := requireGroup(actor, auth.GroupEditor); err != nil {
		return nil, err
	}
	current, err := s.store.GetIssue(ctx, issueID, actor.UserID)
	if err != nil {
		return nil, visible(err)
	}
	updated := lifecycle.ApplyIssuePatch(*current, patch, actor.UserID, s.now())
	if err := s.store.UpdateIssueResolution(ctx, &updated); err != nil {
		return nil, visible(err)
	}
	s.logger.Info("issue updated",
		zap.String("issue_id", updated.ID),
		zap.String("job_id", updated.JobID),
		zap.String("user_id", actor.UserID),
		zap.Bool("resolved", updated.Resolved))
	return &updated, nil
}

// Staging returns one staging row owned by the actor.
func (s *Review) Staging(ctx context.Context, actor auth.Actor, stagingID string) (*model.StagingRecord, error) {
	rec, err := s.store.GetStaging(ctx, stagingID, actor.UserID)
	if err != nil {
		return nil, visible(err)
	}
	return rec, nil
}

// UpdateStaging applies an editor correction to a staging row.
func (s *Review) UpdateStaging(ctx context.Context, actor auth.Actor, stagingID string, patch lifecycle.StagingPatch) (*model.StagingRecord, error) {
	if err := requireGroup(actor, auth.GroupEditor); err != nil {
		return nil, err
	}
	current, err := s.store.GetStaging(ctx, stagingID, actor.UserID)
	if err != nil {
		return nil, visible(err)
	}
	updated, err := lifecycle.ApplyStagingPatch(*current, patch)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateStaging(ctx, &updated); err != nil {
		return nil, visible(err)
	}
	s.logger.Info("staging row corrected",
		zap.String("staging_id", updated.ID),
		zap.String("job_id", updated.JobID),
		zap.String("user_id", actor.UserID))
	return &updated, nil
}

// Contacts lists the actor's contacts.
func (s *Review) Contacts(ctx context.Context, actor auth.Actor) ([]model.Contact, error) {
	return s.store.ListContacts(ctx, actor.UserID)
}

// Contact looks a contact up by email, normalized the way rows are.
func (s *Review) Contact(ctx context.Context, actor auth.Actor, email string) (*model.Contact, error) {
	c, err := s.store.GetContactByEmail(ctx, actor.UserID, ingest.NormalizeEmail(email))
	if err != nil {
		return nil, visible(err)
	}
	return c, nil
}

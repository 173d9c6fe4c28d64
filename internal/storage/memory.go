// Package storage contains the in-memory persistence used by the local
// runner and by tests: a MemoryStore that honours the same uniqueness and
// ownership rules as the Postgres repository, and a MemoryObjects blob store.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/dharsanguruparan/IngestDrop/internal/model"
	"github.com/dharsanguruparan/IngestDrop/internal/repository"
)

type stagingIdentity struct {
	jobID      string
	hash       string
	occurrence int
}

type issueIdentity struct {
	jobID string
	key   string
}

// MemoryStore provides an in-memory store guarded by an RWMutex so concurrent
// readers do not block each other.
type MemoryStore struct {
	mu sync.RWMutex

	jobs         map[string]*model.Job
	fingerprints map[string]string // user|fingerprint -> job id

	staging    map[string]*model.StagingRecord
	stagingIDs map[stagingIdentity]string

	issues    map[string]*model.Issue
	issueKeys map[issueIdentity]string
	items     []model.IssueItem

	contacts map[string]*model.Contact

	now func() time.Time
}

var _ repository.Store = (*MemoryStore)(nil)

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:         make(map[string]*model.Job),
		fingerprints: make(map[string]string),
		staging:      make(map[string]*model.StagingRecord),
		stagingIDs:   make(map[stagingIdentity]string),
		issues:       make(map[string]*model.Issue),
		issueKeys:    make(map[issueIdentity]string),
		contacts:     make(map[string]*model.Contact),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func fingerprintKey(userID, fp string) string {
	return userID + "|" + fp
}

func notFound(kind, id string) error {
	return eris.Wrapf(repository.ErrNotFound, "storage: %s %s", kind, id)
}

// CreateJob inserts a PENDING job, enforcing one fingerprint per user.
func (m *MemoryStore) CreateJob(_ context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := fingerprintKey(job.UserID, job.Fingerprint)
	if _, exists := m.fingerprints[key]; exists {
		return eris.Wrapf(repository.ErrDuplicate, "storage: job fingerprint for user %s", job.UserID)
	}
	if _, exists := m.jobs[job.ID]; exists {
		return eris.Wrapf(repository.ErrDuplicate, "storage: job %s", job.ID)
	}
	now := m.now()
	job.Status = model.JobPending
	job.CreatedAt = now
	job.UpdatedAt = now
	rec := *job
	m.jobs[job.ID] = &rec
	m.fingerprints[key] = job.ID
	return nil
}

// GetJob returns a job copy regardless of owner.
func (m *MemoryStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, notFound("job", id)
	}
	out := *job
	return &out, nil
}

// GetJobForUser returns a job copy owned by userID.
func (m *MemoryStore) GetJobForUser(_ context.Context, id, userID string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok || job.UserID != userID {
		return nil, notFound("job", id)
	}
	out := *job
	return &out, nil
}

// FindJobByFingerprint looks up the user's job for a content hash.
func (m *MemoryStore) FindJobByFingerprint(_ context.Context, userID, fingerprint string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.fingerprints[fingerprintKey(userID, fingerprint)]
	if !ok {
		return nil, notFound("job fingerprint", fingerprint)
	}
	out := *m.jobs[id]
	return &out, nil
}

// ListJobs returns the user's jobs, newest first.
func (m *MemoryStore) ListJobs(_ context.Context, userID string) ([]model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Job{}
	for _, job := range m.jobs {
		if job.UserID == userID {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// StartJob moves the job to PROCESSING when its status is one of from.
func (m *MemoryStore) StartJob(_ context.Context, id string, from []model.JobStatus) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, notFound("job", id)
	}
	if !hasStatus(from, job.Status) {
		return nil, eris.Wrapf(repository.ErrStatusConflict, "storage: start job %s", id)
	}
	now := m.now()
	job.Status = model.JobProcessing
	job.ErrorMessage = nil
	job.ProcessStart = &now
	job.ProcessEnd = nil
	job.UpdatedAt = now
	out := *job
	return &out, nil
}

// FinishJob records the outcome of a successful run.
func (m *MemoryStore) FinishJob(_ context.Context, id string, status model.JobStatus, processedRows, issueCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return notFound("job", id)
	}
	now := m.now()
	job.Status = status
	job.ProcessedRows = processedRows
	job.IssueCount = issueCount
	job.ErrorMessage = nil
	job.ProcessEnd = &now
	job.UpdatedAt = now
	return nil
}

// FailJob marks the job FAILED and stores the message.
func (m *MemoryStore) FailJob(_ context.Context, id string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return notFound("job", id)
	}
	now := m.now()
	job.Status = model.JobFailed
	job.ErrorMessage = &message
	job.ProcessEnd = &now
	job.UpdatedAt = now
	return nil
}

// DeleteJob removes issue items, issues, staging rows and the job under one
// write lock.
func (m *MemoryStore) DeleteJob(_ context.Context, id string, allowed []model.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return notFound("job", id)
	}
	if !hasStatus(allowed, job.Status) {
		return eris.Wrapf(repository.ErrStatusConflict, "storage: delete job %s in status %s", id, job.Status)
	}

	items := m.items[:0]
	for _, it := range m.items {
		if it.JobID != id {
			items = append(items, it)
		}
	}
	m.items = items
	for iid, is := range m.issues {
		if is.JobID == id {
			delete(m.issueKeys, issueIdentity{jobID: id, key: is.Key})
			delete(m.issues, iid)
		}
	}
	for sid, rec := range m.staging {
		if rec.JobID == id {
			delete(m.stagingIDs, stagingIdentity{jobID: id, hash: rec.RowHash, occurrence: rec.RowOccurrence})
			delete(m.staging, sid)
		}
	}
	for _, c := range m.contacts {
		if _, exists := m.staging[c.StagingID]; !exists {
			c.StagingID = ""
		}
	}
	delete(m.fingerprints, fingerprintKey(job.UserID, job.Fingerprint))
	delete(m.jobs, id)
	return nil
}

func hasStatus(statuses []model.JobStatus, s model.JobStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// InsertStaging stores records whose identity is new and skips the rest.
func (m *MemoryStore) InsertStaging(_ context.Context, records []model.StagingRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var inserted int64
	for _, rec := range records {
		if _, ok := m.jobs[rec.JobID]; !ok {
			return inserted, notFound("job", rec.JobID)
		}
		key := stagingIdentity{jobID: rec.JobID, hash: rec.RowHash, occurrence: rec.RowOccurrence}
		if _, exists := m.stagingIDs[key]; exists {
			continue
		}
		if _, exists := m.staging[rec.ID]; exists {
			return inserted, eris.Wrapf(repository.ErrDuplicate, "storage: staging %s", rec.ID)
		}
		stored := rec
		m.staging[rec.ID] = &stored
		m.stagingIDs[key] = rec.ID
		inserted++
	}
	return inserted, nil
}

// ListStaging returns a job's rows in file order.
func (m *MemoryStore) ListStaging(_ context.Context, jobID string) ([]model.StagingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stagingForJob(jobID), nil
}

func (m *MemoryStore) stagingForJob(jobID string) []model.StagingRecord {
	out := []model.StagingRecord{}
	for _, rec := range m.staging {
		if rec.JobID == jobID {
			out = append(out, *rec)
		}
	}
	sortStaging(out)
	return out
}

func sortStaging(recs []model.StagingRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].RowNumber != recs[j].RowNumber {
			return recs[i].RowNumber < recs[j].RowNumber
		}
		return recs[i].RowOccurrence < recs[j].RowOccurrence
	})
}

// GetStaging returns a row whose job belongs to userID.
func (m *MemoryStore) GetStaging(_ context.Context, id, userID string) (*model.StagingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.staging[id]
	if !ok {
		return nil, notFound("staging", id)
	}
	if job, ok := m.jobs[rec.JobID]; !ok || job.UserID != userID {
		return nil, notFound("staging", id)
	}
	out := *rec
	return &out, nil
}

// UpdateStaging stores editor corrections, keeping hash and occurrence.
func (m *MemoryStore) UpdateStaging(_ context.Context, rec *model.StagingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.staging[rec.ID]
	if !ok {
		return notFound("staging", rec.ID)
	}
	cur.Email = rec.Email
	cur.FirstName = rec.FirstName
	cur.LastName = rec.LastName
	cur.Company = rec.Company
	cur.Status = rec.Status
	return nil
}

// ApplyStagingStatuses flags rows and marks the rest READY, skipping DISCARD.
func (m *MemoryStore) ApplyStagingStatuses(_ context.Context, jobID string, flagged []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]bool, len(flagged))
	for _, id := range flagged {
		set[id] = true
	}
	for _, rec := range m.staging {
		if rec.JobID != jobID || rec.Status == model.StagingDiscard {
			continue
		}
		if set[rec.ID] {
			rec.Status = model.StagingIssue
		} else {
			rec.Status = model.StagingReady
		}
	}
	return nil
}

// CreateIssue stores the issue and its items unless the key already exists
// for the job. Items must reference rows of the same job.
func (m *MemoryStore) CreateIssue(_ context.Context, issue *model.Issue, stagingIDs []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := issueIdentity{jobID: issue.JobID, key: issue.Key}
	if _, exists := m.issueKeys[key]; exists {
		return false, nil
	}
	for _, sid := range stagingIDs {
		rec, ok := m.staging[sid]
		if !ok || rec.JobID != issue.JobID {
			return false, eris.Errorf("storage: issue item staging %s is not part of job %s", sid, issue.JobID)
		}
	}
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	issue.CreatedAt = m.now()
	stored := *issue
	stored.AffectedRows = nil
	m.issues[issue.ID] = &stored
	m.issueKeys[key] = issue.ID
	for _, sid := range stagingIDs {
		m.items = append(m.items, model.IssueItem{ID: uuid.NewString(), IssueID: issue.ID, StagingID: sid, JobID: issue.JobID})
	}
	return true, nil
}

func (m *MemoryStore) withAffected(is *model.Issue) model.Issue {
	out := *is
	out.AffectedRows = []model.StagingRecord{}
	for _, it := range m.items {
		if it.IssueID == is.ID {
			if rec, ok := m.staging[it.StagingID]; ok {
				out.AffectedRows = append(out.AffectedRows, *rec)
			}
		}
	}
	sortStaging(out.AffectedRows)
	return out
}

// GetIssue returns an issue with its rows when its job belongs to userID.
func (m *MemoryStore) GetIssue(_ context.Context, id, userID string) (*model.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	is, ok := m.issues[id]
	if !ok {
		return nil, notFound("issue", id)
	}
	if job, ok := m.jobs[is.JobID]; !ok || job.UserID != userID {
		return nil, notFound("issue", id)
	}
	out := m.withAffected(is)
	return &out, nil
}

// ListIssuesByJob returns a job's issues, oldest first.
func (m *MemoryStore) ListIssuesByJob(_ context.Context, jobID string) ([]model.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterIssues(func(is *model.Issue) bool { return is.JobID == jobID }), nil
}

// ListIssuesByUser returns issues across all of the user's jobs.
func (m *MemoryStore) ListIssuesByUser(_ context.Context, userID string) ([]model.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterIssues(func(is *model.Issue) bool {
		job, ok := m.jobs[is.JobID]
		return ok && job.UserID == userID
	}), nil
}

func (m *MemoryStore) filterIssues(keep func(*model.Issue) bool) []model.Issue {
	out := []model.Issue{}
	for _, is := range m.issues {
		if keep(is) {
			out = append(out, m.withAffected(is))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UpdateIssueResolution stores the resolution fields.
func (m *MemoryStore) UpdateIssueResolution(_ context.Context, issue *model.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.issues[issue.ID]
	if !ok {
		return notFound("issue", issue.ID)
	}
	cur.Resolved = issue.Resolved
	cur.ResolvedAt = issue.ResolvedAt
	cur.ResolvedBy = issue.ResolvedBy
	cur.ResolutionComment = issue.ResolutionComment
	return nil
}

// CountUnresolvedIssues counts the job's open issues.
func (m *MemoryStore) CountUnresolvedIssues(_ context.Context, jobID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, is := range m.issues {
		if is.JobID == jobID && !is.Resolved {
			n++
		}
	}
	return n, nil
}

// UnresolvedStagingIDs lists rows referenced by open issues of the job.
func (m *MemoryStore) UnresolvedStagingIDs(_ context.Context, jobID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	out := []string{}
	for _, it := range m.items {
		if it.JobID != jobID || seen[it.StagingID] {
			continue
		}
		if is, ok := m.issues[it.IssueID]; ok && !is.Resolved {
			seen[it.StagingID] = true
			out = append(out, it.StagingID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// AddContact seeds a promoted contact. Promotion itself happens outside the
// ingestion pipeline; this exists for the local runner and tests.
func (m *MemoryStore) AddContact(c model.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.contacts {
		if existing.UserID == c.UserID && existing.Email == c.Email {
			return eris.Wrapf(repository.ErrDuplicate, "storage: contact %s", c.Email)
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	m.contacts[c.ID] = &c
	return nil
}

// ListContacts returns the user's contacts ordered by email.
func (m *MemoryStore) ListContacts(_ context.Context, userID string) ([]model.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Contact{}
	for _, c := range m.contacts {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// GetContactByEmail looks up a contact by normalized email.
func (m *MemoryStore) GetContactByEmail(_ context.Context, userID, email string) (*model.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.contacts {
		if c.UserID == userID && c.Email == email {
			out := *c
			return &out, nil
		}
	}
	return nil, notFound("contact", email)
}

// ContactEmails returns the set of the user's contact emails.
func (m *MemoryStore) ContactEmails(_ context.Context, userID string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool)
	for _, c := range m.contacts {
		if c.UserID == userID {
			out[c.Email] = true
		}
	}
	return out, nil
}

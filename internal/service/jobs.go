package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/IngestDrop/internal/auth"
	"github.com/dharsanguruparan/IngestDrop/internal/ingest"
	"github.com/dharsanguruparan/IngestDrop/internal/lifecycle"
	"github.com/dharsanguruparan/IngestDrop/internal/metrics"
	"github.com/dharsanguruparan/IngestDrop/internal/model"
	"github.com/dharsanguruparan/IngestDrop/internal/queue"
	"github.com/dharsanguruparan/IngestDrop/internal/repository"
	"github.com/dharsanguruparan/IngestDrop/internal/s3storage"
	"github.com/dharsanguruparan/IngestDrop/internal/storage"
)

// UploadResult is returned for an accepted upload.
type UploadResult struct {
	JobID     string `json:"job_id"`
	Message   string `json:"message"`
	Filename  string `json:"filename"`
	TotalRows int    `json:"total_rows"`
	Encoding  string `json:"encoding"`
	Delimiter string `json:"delimiter"`
}

// Jobs handles the job lifecycle use cases.
type Jobs struct {
	store      repository.Store
	objects    storage.Objects
	dispatcher queue.Dispatcher
	maxBytes   int64
	logger     *zap.Logger
	now        func() time.Time
}

// NewJobs wires the job use cases.
func NewJobs(store repository.Store, objects storage.Objects, dispatcher queue.Dispatcher, maxBytes int64, logger *zap.Logger) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Jobs{
		store:      store,
		objects:    objects,
		dispatcher: dispatcher,
		maxBytes:   maxBytes,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Upload validates the file, rejects content the user already ingested,
// stores the bytes, creates a PENDING job and dispatches it.
func (s *Jobs) Upload(ctx context.Context, actor auth.Actor, filename string, data []byte) (*UploadResult, error) {
	if err := requireGroup(actor, auth.GroupUploader); err != nil {
		return nil, err
	}
	res, err := s.upload(ctx, actor, filename, data)
	metrics.UploadsTotal.WithLabelValues(uploadOutcome(err)).Inc()
	return res, err
}

func uploadOutcome(err error) string {
	var (
		dup     *ingest.DuplicateFileError
		invalid *ingest.ValidationError
		format  *ingest.FormatError
		empty   *ingest.EmptyContentError
		headers *ingest.MissingHeadersError
	)
	switch {
	case err == nil:
		return "accepted"
	case errors.As(err, &dup):
		return "duplicate"
	case errors.As(err, &invalid), errors.As(err, &format), errors.As(err, &empty), errors.As(err, &headers):
		return "invalid"
	}
	return "error"
}

func (s *Jobs) upload(ctx context.Context, actor auth.Actor, filename string, data []byte) (*UploadResult, error) {
	if err := ingest.CheckFile(filename, int64(len(data)), s.maxBytes); err != nil {
		return nil, err
	}
	parsed, err := ingest.Parse(data)
	if err != nil {
		return nil, err
	}

	prior, err := s.store.FindJobByFingerprint(ctx, actor.UserID, parsed.Fingerprint)
	switch {
	case err == nil:
		return nil, &ingest.DuplicateFileError{PriorJobID: prior.ID, Filename: filename}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	job := &model.Job{
		ID:               uuid.NewString(),
		UserID:           actor.UserID,
		OriginalFilename: filename,
		ObjectKey:        s3storage.ObjectKey(actor.UserID, filename, s.now()),
		Fingerprint:      parsed.Fingerprint,
		TotalRows:        parsed.TotalRows(),
	}
	log := s.logger.With(zap.String("job_id", job.ID), zap.String("user_id", actor.UserID), zap.String("object_key", job.ObjectKey))

	if err := s.objects.Put(ctx, job.ObjectKey, data, "text/csv"); err != nil {
		return nil, err
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		s.removeObject(ctx, log, job.ObjectKey)
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent upload of the same content.
			if prior, findErr := s.store.FindJobByFingerprint(ctx, actor.UserID, parsed.Fingerprint); findErr == nil {
				return nil, &ingest.DuplicateFileError{PriorJobID: prior.ID, Filename: filename}
			}
			return nil, &ingest.DuplicateFileError{Filename: filename}
		}
		return nil, err
	}
	if err := s.dispatcher.Dispatch(ctx, queue.ProcessPayload{JobID: job.ID, ObjectKey: job.ObjectKey}); err != nil {
		log.Error("dispatch failed, rolling back upload", zap.Error(err))
		if delErr := s.store.DeleteJob(context.WithoutCancel(ctx), job.ID, lifecycle.Deletable); delErr != nil {
			log.Error("roll back job", zap.Error(delErr))
		}
		s.removeObject(ctx, log, job.ObjectKey)
		return nil, eris.Wrap(err, "service: dispatch job")
	}

	log.Info("upload accepted",
		zap.String("filename", filename),
		zap.Int("rows", job.TotalRows),
		zap.String("encoding", parsed.Table.Encoding),
		zap.String("delimiter", parsed.Table.DelimiterName()))
	return &UploadResult{
		JobID:     job.ID,
		Message:   "File uploaded successfully and queued for processing",
		Filename:  filename,
		TotalRows: job.TotalRows,
		Encoding:  parsed.Table.Encoding,
		Delimiter: parsed.Table.DelimiterName(),
	}, nil
}

func (s *Jobs) removeObject(ctx context.Context, log *zap.Logger, key string) {
	if err := s.objects.Delete(context.WithoutCancel(ctx), key); err != nil {
		log.Warn("remove object", zap.String("object_key", key), zap.Error(err))
	}
}

// Reprocess re-dispatches a job from its stored file. Staging rows and
// issues from earlier runs are reused through their idempotency keys.
func (s *Jobs) Reprocess(ctx context.Context, actor auth.Actor, jobID string) (*model.Job, error) {
	if err := requireGroup(actor, auth.GroupUploader); err != nil {
		return nil, err
	}
	job, err := s.store.GetJobForUser(ctx, jobID, actor.UserID)
	if err != nil {
		return nil, visible(err)
	}
	if err := lifecycle.CheckProcess(job); err != nil {
		return nil, err
	}
	if err := s.dispatcher.Dispatch(ctx, queue.ProcessPayload{JobID: job.ID, ObjectKey: job.ObjectKey}); err != nil {
		return nil, eris.Wrap(err, "service: dispatch job")
	}
	s.logger.Info("job reprocess requested", zap.String("job_id", job.ID), zap.String("user_id", actor.UserID))
	return job, nil
}

// Delete removes a job and its rows and issues, then the stored file.
// COMPLETED and PROCESSING jobs are protected.
func (s *Jobs) Delete(ctx context.Context, actor auth.Actor, jobID string) error {
	if err := requireGroup(actor, auth.GroupEditor); err != nil {
		return err
	}
	job, err := s.store.GetJobForUser(ctx, jobID, actor.UserID)
	if err != nil {
		return visible(err)
	}
	if err := lifecycle.CheckDelete(job); err != nil {
		return err
	}
	if err := s.store.DeleteJob(ctx, job.ID, lifecycle.Deletable); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// The status moved between the read and the locked delete.
			current, getErr := s.store.GetJob(ctx, job.ID)
			if getErr != nil {
				return visible(getErr)
			}
			return &lifecycle.PolicyError{Op: "delete", JobID: job.ID, Status: current.Status}
		}
		return visible(err)
	}
	log := s.logger.With(zap.String("job_id", job.ID), zap.String("user_id", actor.UserID))
	s.removeObject(ctx, log, job.ObjectKey)
	log.Info("job deleted")
	return nil
}

// List returns the actor's jobs, newest first.
func (s *Jobs) List(ctx context.Context, actor auth.Actor) ([]model.Job, error) {
	return s.store.ListJobs(ctx, actor.UserID)
}

// Get returns one of the actor's jobs.
func (s *Jobs) Get(ctx context.Context, actor auth.Actor, jobID string) (*model.Job, error) {
	job, err := s.store.GetJobForUser(ctx, jobID, actor.UserID)
	if err != nil {
		return nil, visible(err)
	}
	return job, nil
}

// Staging returns the job's rows in file order.
func (s *Jobs) Staging(ctx context.Context, actor auth.Actor, jobID string) ([]model.StagingRecord, error) {
	if _, err := s.Get(ctx, actor, jobID); err != nil {
		return nil, err
	}
	return s.store.ListStaging(ctx, jobID)
}

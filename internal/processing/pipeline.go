package processing

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/IngestDrop/internal/config"
	"github.com/dharsanguruparan/IngestDrop/internal/ingest"
	"github.com/dharsanguruparan/IngestDrop/internal/lifecycle"
	"github.com/dharsanguruparan/IngestDrop/internal/metrics"
	"github.com/dharsanguruparan/IngestDrop/internal/model"
	"github.com/dharsanguruparan/IngestDrop/internal/repository"
	"github.com/dharsanguruparan/IngestDrop/internal/storage"
)

// ErrNotProcessable means the job is missing or not in a status that may
// enter PROCESSING. Retrying will not help.
var ErrNotProcessable = errors.New("job is not processable")

// Options tunes a processing run.
type Options struct {
	BatchSize        int
	InsertWorkers    int
	RequiredFields   []ingest.Field
	CheckEmailSyntax bool
}

// Result summarizes a finished run.
type Result struct {
	JobID         string
	Status        model.JobStatus
	StagedRows    int
	InsertedRows  int64
	IssuesCreated int
	Unresolved    int
}

// Pipeline runs a job from its stored file to staged rows and issues.
type Pipeline struct {
	store   repository.Store
	objects storage.Objects
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

// NewPipeline wires a pipeline.
func NewPipeline(store repository.Store, objects storage.Objects, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.InsertWorkers <= 0 {
		opts.InsertWorkers = 1
	}
	return &Pipeline{
		store:   store,
		objects: objects,
		opts:    opts,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Process runs one job. It enters PROCESSING with a conditional update, so a
// job already running or completed is left alone and ErrNotProcessable is
// returned. Any later failure marks the job FAILED; rows already staged stay.
func (p *Pipeline) Process(ctx context.Context, jobID string) (*Result, error) {
	job, err := p.store.StartJob(ctx, jobID, lifecycle.Processable)
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) || errors.Is(err, repository.ErrNotFound) {
			return nil, eris.Wrapf(ErrNotProcessable, "processing: job %s", jobID)
		}
		return nil, eris.Wrap(err, "processing: start job")
	}
	log := p.logger.With(zap.String("job_id", job.ID), zap.String("user_id", job.UserID))
	started := time.Now()
	defer func() { metrics.ProcessingDurationSeconds.Observe(time.Since(started).Seconds()) }()

	failure := func(err error) (*Result, error) {
		log.Error("processing failed", zap.Error(err))
		if markErr := p.store.FailJob(context.WithoutCancel(ctx), job.ID, err.Error()); markErr != nil {
			log.Error("mark job failed", zap.Error(markErr))
		}
		metrics.JobsFinishedTotal.WithLabelValues(string(model.JobFailed)).Inc()
		return nil, err
	}

	data, err := p.objects.Get(ctx, job.ObjectKey)
	if err != nil {
		return failure(err)
	}
	parsed, err := ingest.Parse(data)
	if err != nil {
		return failure(err)
	}
	log.Info("file parsed",
		zap.String("encoding", parsed.Table.Encoding),
		zap.String("delimiter", parsed.Table.DelimiterName()),
		zap.Int("rows", parsed.TotalRows()))

	records := ingest.StageRows(job.ID, parsed.Rows, p.now())
	inserted, err := p.insertBatches(ctx, records)
	if err != nil {
		return failure(err)
	}
	metrics.StagedRowsTotal.Add(float64(inserted))

	// Detection needs the complete row set, including rows kept from earlier
	// runs, so it reads back only after every batch is written.
	staged, err := p.store.ListStaging(ctx, job.ID)
	if err != nil {
		return failure(err)
	}
	existing, err := p.store.ContactEmails(ctx, job.UserID)
	if err != nil {
		return failure(err)
	}
	findings := ingest.DetectIssues(job.ID, staged, ingest.DetectOptions{
		RequiredFields:   p.opts.RequiredFields,
		CheckEmailSyntax: p.opts.CheckEmailSyntax,
		ExistingEmails:   existing,
	})

	created := 0
	for _, f := range findings {
		issue := f.Issue(job.ID)
		ok, err := p.store.CreateIssue(ctx, &issue, f.StagingIDs)
		if err != nil {
			return failure(err)
		}
		if ok {
			created++
			metrics.IssuesCreatedTotal.WithLabelValues(string(f.Type)).Inc()
		}
	}

	flagged, err := p.store.UnresolvedStagingIDs(ctx, job.ID)
	if err != nil {
		return failure(err)
	}
	if err := p.store.ApplyStagingStatuses(ctx, job.ID, flagged); err != nil {
		return failure(err)
	}
	unresolved, err := p.store.CountUnresolvedIssues(ctx, job.ID)
	if err != nil {
		return failure(err)
	}
	status := lifecycle.FinalStatus(unresolved)
	if err := p.store.FinishJob(ctx, job.ID, status, len(staged), unresolved); err != nil {
		return failure(err)
	}
	metrics.JobsFinishedTotal.WithLabelValues(string(status)).Inc()

	log.Info("job processed",
		zap.String("status", string(status)),
		zap.Int("staged", len(staged)),
		zap.Int64("inserted", inserted),
		zap.Int("findings", len(findings)),
		zap.Int("issues_created", created),
		zap.Int("unresolved", unresolved))
	return &Result{
		JobID:         job.ID,
		Status:        status,
		StagedRows:    len(staged),
		InsertedRows:  inserted,
		IssuesCreated: created,
		Unresolved:    unresolved,
	}, nil
}

// insertBatches writes records in chunks, several chunks at a time.
func (p *Pipeline) insertBatches(ctx context.Context, records []model.StagingRecord) (int64, error) {
	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.InsertWorkers)
	for start := 0; start < len(records); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(records))
		batch := records[start:end]
		g.Go(func() error {
			n, err := p.store.InsertStaging(gctx, batch)
			if err != nil {
				return err
			}
			total.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total.Load(), err
	}
	return total.Load(), nil
}

// OptionsFromConfig converts the pipeline section of the configuration.
func OptionsFromConfig(cfg config.PipelineConfig) (Options, error) {
	fields, err := cfg.Fields()
	if err != nil {
		return Options{}, err
	}
	return Options{
		BatchSize:        cfg.InsertBatchSize,
		InsertWorkers:    cfg.InsertWorkers,
		RequiredFields:   fields,
		CheckEmailSyntax: cfg.CheckEmailSyntax,
	}, nil
}

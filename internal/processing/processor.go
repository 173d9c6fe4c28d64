// Package processing runs ingestion jobs: Pipeline does the work for one job,
// and Pool is an in-process worker pool that feeds it from a buffered channel
// when the service runs without a Redis queue.
package processing

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/IngestDrop/internal/metrics"
	"github.com/dharsanguruparan/IngestDrop/internal/queue"
	"github.com/dharsanguruparan/IngestDrop/internal/repository"
)

// Runner processes one job.
type Runner interface {
	Process(ctx context.Context, jobID string) (*Result, error)
}

// Pool consumes process payloads with a fixed number of goroutines.
type Pool struct {
	runner  Runner
	jobs    repository.JobStore
	queue   chan queue.ProcessPayload
	workers int
	logger  *zap.Logger
	wg      sync.WaitGroup
}

var _ queue.Dispatcher = (*Pool)(nil)

// NewPool builds a Pool whose queue holds queueSize pending jobs.
func NewPool(runner Runner, jobs repository.JobStore, workers, queueSize int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		runner:  runner,
		jobs:    jobs,
		queue:   make(chan queue.ProcessPayload, queueSize),
		workers: workers,
		logger:  logger,
	}
}

// Start launches worker goroutines. They exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Dispatch queues a job without blocking. When the queue is full the job is
// dropped and marked FAILED so it can be reprocessed later.
func (p *Pool) Dispatch(ctx context.Context, payload queue.ProcessPayload) error {
	select {
	case p.queue <- payload:
		return nil
	default:
		p.logger.Warn("processing queue full, dropping job", zap.String("job_id", payload.JobID))
		metrics.QueueDroppedTotal.Inc()
		return p.jobs.FailJob(ctx, payload.JobID, "processing queue full")
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-p.queue:
			p.process(ctx, payload)
		}
	}
}

func (p *Pool) process(ctx context.Context, payload queue.ProcessPayload) {
	if _, err := p.runner.Process(ctx, payload.JobID); err != nil {
		if errors.Is(err, ErrNotProcessable) {
			p.logger.Info("skipping job", zap.String("job_id", payload.JobID), zap.Error(err))
			return
		}
		p.logger.Error("job failed", zap.String("job_id", payload.JobID), zap.Error(err))
	}
}

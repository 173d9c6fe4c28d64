package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/IngestDrop/internal/processing"
	"github.com/dharsanguruparan/IngestDrop/internal/queue"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	runner processing.Runner
	logger *zap.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(runner processing.Runner, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{runner: runner, logger: logger}
}

// Handler registers the process job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ProcessJobTask, p.HandleProcess)
	return mux
}

// HandleProcess runs the pipeline for the task's job. Jobs that are gone or
// no longer processable are skipped without retry; the pipeline has already
// marked genuine failures FAILED, and asynq retries those.
func (p *Processor) HandleProcess(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodeProcessPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	log := p.logger.With(zap.String("job_id", payload.JobID), zap.String("object_key", payload.ObjectKey))
	res, err := p.runner.Process(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, processing.ErrNotProcessable) {
			log.Info("job not processable, dropping task", zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	log.Info("job processed", zap.String("status", string(res.Status)), zap.Int("rows", res.StagedRows))
	return nil
}

package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/IngestDrop/internal/model"
	"github.com/dharsanguruparan/IngestDrop/internal/processing"
	"github.com/dharsanguruparan/IngestDrop/internal/queue"
)

type stubRunner struct {
	calls []string
	err   error
}

func (s *stubRunner) Process(_ context.Context, jobID string) (*processing.Result, error) {
	s.calls = append(s.calls, jobID)
	if s.err != nil {
		return nil, s.err
	}
	return &processing.Result{JobID: jobID, Status: model.JobCompleted}, nil
}

func task(t *testing.T, jobID string) *asynq.Task {
	t.Helper()
	tk, err := queue.NewProcessTask(queue.ProcessPayload{JobID: jobID, ObjectKey: "k"})
	require.NoError(t, err)
	return tk
}

func TestHandleProcess(t *testing.T) {
	runner := &stubRunner{}
	p := NewProcessor(runner, nil)

	require.NoError(t, p.HandleProcess(context.Background(), task(t, "job-1")))
	assert.Equal(t, []string{"job-1"}, runner.calls)
}

func TestHandleProcess_NotProcessableSkipsRetry(t *testing.T) {
	runner := &stubRunner{err: eris.Wrap(processing.ErrNotProcessable, "processing: job job-1")}
	p := NewProcessor(runner, nil)

	err := p.HandleProcess(context.Background(), task(t, "job-1"))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleProcess_FailureIsRetried(t *testing.T) {
	runner := &stubRunner{err: errors.New("db down")}
	p := NewProcessor(runner, nil)

	err := p.HandleProcess(context.Background(), task(t, "job-1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleProcess_BadPayload(t *testing.T) {
	p := NewProcessor(&stubRunner{}, nil)
	err := p.HandleProcess(context.Background(), asynq.NewTask(queue.ProcessJobTask, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandlerRoutesProcessTask(t *testing.T) {
	runner := &stubRunner{}
	mux := NewProcessor(runner, nil).Handler()

	require.NoError(t, mux.ProcessTask(context.Background(), task(t, "job-2")))
	assert.Equal(t, []string{"job-2"}, runner.calls)
}

package queue

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/rotisserie/eris"
)

const (
	// ProcessJobTask is scheduled after each upload and each reprocess request.
	ProcessJobTask = "job:process"
)

// ProcessPayload is serialized into the task payload so the worker knows which
// job to run and which object holds its file.
type ProcessPayload struct {
	JobID     string `json:"job_id"`
	ObjectKey string `json:"object_key"`
}

// Dispatcher hands a job to whatever runs the processing pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload ProcessPayload) error
}

// NewProcessTask encodes the payload as an asynq task.
func NewProcessTask(payload ProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "queue: marshal payload")
	}
	return asynq.NewTask(ProcessJobTask, data), nil
}

// DecodeProcessPayload reads a task payload back.
func DecodeProcessPayload(task *asynq.Task) (ProcessPayload, error) {
	var payload ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, eris.Wrap(err, "queue: decode payload")
	}
	if payload.JobID == "" {
		return payload, eris.New("queue: payload has no job id")
	}
	return payload, nil
}

// Enqueuer is the part of *asynq.Client the dispatcher uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqDispatcher enqueues process tasks on Redis.
type AsynqDispatcher struct {
	client   Enqueuer
	maxRetry int
}

// NewAsynqDispatcher wraps an asynq client.
func NewAsynqDispatcher(client Enqueuer, maxRetry int) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, maxRetry: maxRetry}
}

// Dispatch enqueues a process task.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, payload ProcessPayload) error {
	task, err := NewProcessTask(payload)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task, asynq.MaxRetry(d.maxRetry)); err != nil {
		return eris.Wrap(err, "queue: enqueue process task")
	}
	return nil
}

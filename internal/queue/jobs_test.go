package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "t1"}, nil
}

func TestProcessTaskPayload(t *testing.T) {
	task, err := NewProcessTask(ProcessPayload{JobID: "job-1", ObjectKey: "uploads/u/x.csv"})
	require.NoError(t, err)
	assert.Equal(t, ProcessJobTask, task.Type())
	assert.JSONEq(t, `{"job_id":"job-1","object_key":"uploads/u/x.csv"}`, string(task.Payload()))

	payload, err := DecodeProcessPayload(task)
	require.NoError(t, err)
	assert.Equal(t, "job-1", payload.JobID)
}

func TestDecodeProcessPayload_Rejects(t *testing.T) {
	_, err := DecodeProcessPayload(asynq.NewTask(ProcessJobTask, []byte("not json")))
	assert.Error(t, err)

	_, err = DecodeProcessPayload(asynq.NewTask(ProcessJobTask, []byte(`{"object_key":"k"}`)))
	assert.Error(t, err)
}

func TestAsynqDispatcher(t *testing.T) {
	fake := &fakeEnqueuer{}
	d := NewAsynqDispatcher(fake, 3)

	require.NoError(t, d.Dispatch(context.Background(), ProcessPayload{JobID: "job-1", ObjectKey: "k"}))
	require.Len(t, fake.tasks, 1)
	assert.Equal(t, ProcessJobTask, fake.tasks[0].Type())
	require.Len(t, fake.opts[0], 1)
	assert.Equal(t, asynq.MaxRetryOpt, fake.opts[0][0].Type())
	assert.Equal(t, 3, fake.opts[0][0].Value())

	fake.err = errors.New("redis down")
	assert.Error(t, d.Dispatch(context.Background(), ProcessPayload{JobID: "job-2"}))
}

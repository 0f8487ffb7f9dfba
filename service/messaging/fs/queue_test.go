package fs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stackjob/stackjob/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

func newTestQueue(t *testing.T, config QueueConfig) *Queue[job.Signal] {
	t.Helper()
	config.BasePath = t.TempDir()
	queue, err := NewQueue[job.Signal](afs.New(), config)
	require.NoError(t, err)
	return queue
}

func TestQueuePublishConsumeAck(t *testing.T) {
	queue := newTestQueue(t, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, &job.Signal{JobID: "job-1", Event: job.EventStart}))

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NotNil(t, message)
	assert.Equal(t, "job-1", message.T().JobID)
	require.NoError(t, message.Ack())

	// queue drained
	next, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestQueueNackRetriesThenDeadLetters(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 1
	config.RetryDelay = time.Millisecond
	queue := newTestQueue(t, config)
	ctx := context.Background()

	require.NoError(t, queue.Publish(ctx, &job.Signal{JobID: "job-1", Event: job.EventExecute}))

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NotNil(t, message)
	require.NoError(t, message.Nack(errors.New("boom")))

	// retried after the delay
	var retried *Message[job.Signal]
	require.Eventually(t, func() bool {
		consumed, err := queue.Consume(ctx)
		if err != nil || consumed == nil {
			return false
		}
		retried = consumed.(*Message[job.Signal])
		return true
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, retried.Retries)
	require.NoError(t, retried.Nack(errors.New("boom again")))

	// retries exhausted, nothing more to consume
	require.Eventually(t, func() bool {
		consumed, err := queue.Consume(ctx)
		return err == nil && consumed == nil
	}, time.Second, 5*time.Millisecond)
}

func TestQueueSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	config := DefaultConfig()
	config.BasePath = dir
	first, err := NewQueue[job.Signal](afs.New(), config)
	require.NoError(t, err)
	require.NoError(t, first.Publish(ctx, &job.Signal{JobID: "job-1", Event: job.EventPollRunner}))

	// a fresh instance over the same directory sees the pending message
	second, err := NewQueue[job.Signal](afs.New(), config)
	require.NoError(t, err)
	message, err := second.Consume(ctx)
	require.NoError(t, err)
	require.NotNil(t, message)
	assert.Equal(t, "job-1", message.T().JobID)
}

func TestQueueHonorsDeliverOn(t *testing.T) {
	queue := newTestQueue(t, DefaultConfig())
	ctx := context.Background()

	deliverOn := time.Now().Add(80 * time.Millisecond)
	require.NoError(t, queue.Publish(ctx, &job.Signal{JobID: "delayed", Event: job.EventPollRunner, DeliverOn: &deliverOn}))
	require.NoError(t, queue.Publish(ctx, &job.Signal{JobID: "due", Event: job.EventStart}))

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NotNil(t, message)
	assert.Equal(t, "due", message.T().JobID, "only the due signal is delivered")

	early, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Nil(t, early, "delayed signal stays pending until due")

	require.Eventually(t, func() bool {
		consumed, err := queue.Consume(ctx)
		return err == nil && consumed != nil && consumed.T().JobID == "delayed"
	}, time.Second, 10*time.Millisecond)
	assert.False(t, time.Now().Add(time.Millisecond).Before(deliverOn))
}

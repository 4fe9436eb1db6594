package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, nil).WithBlockTimeout(100 * time.Millisecond), mr
}

func TestEnqueueDequeueActivity(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	chapter := uuid.New()

	require.NoError(t, q.EnqueueActivity(ctx, ActivityPayload{
		Kind:      "membership",
		ChapterID: &chapter,
		Detail:    map[string]any{"action": "removed"},
	}))

	n, err := q.Len(ctx, QueueActivity)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	job, key, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, QueueActivity, key)
	assert.Equal(t, JobTypeActivity, job.Type)
	assert.Zero(t, job.Attempt)

	var p ActivityPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, "membership", p.Kind)
	require.NotNil(t, p.ChapterID)
	assert.Equal(t, chapter, *p.ChapterID)
	assert.Equal(t, "removed", p.Detail["action"])
}

func TestDequeueEmptyTimesOut(t *testing.T) {
	q, _ := newTestQueue(t)
	job, _, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestDequeueSkipsGarbage(t *testing.T) {
	q, mr := newTestQueue(t)
	_, err := mr.Push(QueueActivity, "{not json")
	require.NoError(t, err)

	job, _, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetryMovesToDLQ(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	job := &Job{ID: "j1", Type: JobTypeActivity, Payload: json.RawMessage(`{}`)}

	for i := 1; i < MaxRetries; i++ {
		require.NoError(t, q.Retry(ctx, job))
		assert.Equal(t, i, job.Attempt)
	}
	n, err := q.Len(ctx, QueueActivity)
	require.NoError(t, err)
	assert.EqualValues(t, MaxRetries-1, n)

	require.NoError(t, q.Retry(ctx, job))
	dlq, err := q.Len(ctx, QueueDLQ)
	require.NoError(t, err)
	assert.EqualValues(t, 1, dlq)
}

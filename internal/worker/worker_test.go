package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapterhub/backend/pkg/queue"
)

type memWriter struct {
	mu   sync.Mutex
	rows map[uuid.UUID]queue.ActivityPayload
	fail int
}

func (m *memWriter) Insert(_ context.Context, id uuid.UUID, p queue.ActivityPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail > 0 {
		m.fail--
		return errors.New("db unavailable")
	}
	if m.rows == nil {
		m.rows = map[uuid.UUID]queue.ActivityPayload{}
	}
	m.rows[id] = p
	return nil
}

func (m *memWriter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func newQueue(t *testing.T) (*queue.Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return queue.NewQueue(rdb, nil).WithBlockTimeout(50 * time.Millisecond), mr
}

func TestProcess(t *testing.T) {
	w := &memWriter{}
	p := NewActivityProcessor(w, nil, nil)
	ctx := context.Background()

	body, _ := json.Marshal(queue.ActivityPayload{Kind: "promotion"})
	id := uuid.New()
	require.NoError(t, p.Process(ctx, &queue.Job{ID: id.String(), Type: queue.JobTypeActivity, Payload: body}))
	assert.Equal(t, "promotion", w.rows[id].Kind)

	assert.Error(t, p.Process(ctx, &queue.Job{ID: id.String(), Type: "recording", Payload: body}))
	assert.Error(t, p.Process(ctx, &queue.Job{ID: id.String(), Type: queue.JobTypeActivity, Payload: []byte(`{}`)}))
	assert.Error(t, p.Process(ctx, &queue.Job{ID: "not-a-uuid", Type: queue.JobTypeActivity, Payload: body}))
}

func TestRun_DrainsQueueAndRetries(t *testing.T) {
	q, _ := newQueue(t)
	w := &memWriter{fail: 1}
	p := NewActivityProcessor(w, q, nil)
	p.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.EnqueueActivity(ctx, queue.ActivityPayload{Kind: "content"}))
	require.NoError(t, q.EnqueueActivity(ctx, queue.ActivityPayload{Kind: "membership"}))

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return w.count() == 2 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

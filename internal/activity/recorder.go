// Package activity records organisational events (join requests, promotions, new content)
// through the job queue and reads them back for dashboards.
package activity

import (
	"context"

	"go.uber.org/zap"

	"github.com/chapterhub/backend/pkg/queue"
)

// Enqueuer is the part of *queue.Queue the recorder needs.
type Enqueuer interface {
	EnqueueActivity(ctx context.Context, payload queue.ActivityPayload) error
}

// Recorder hands activity entries to the worker. Recording never fails the request that
// produced it; enqueue errors are logged and dropped.
type Recorder struct {
	queue  Enqueuer
	logger *zap.Logger
}

// NewRecorder creates a recorder. A nil queue yields a recorder that only logs.
func NewRecorder(q Enqueuer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{queue: q, logger: logger}
}

// Record enqueues p.
func (r *Recorder) Record(ctx context.Context, p queue.ActivityPayload) {
	if r == nil {
		return
	}
	if r.queue == nil {
		r.logger.Debug("activity not queued", zap.String("kind", p.Kind))
		return
	}
	if err := r.queue.EnqueueActivity(ctx, p); err != nil {
		r.logger.Warn("enqueue activity failed", zap.Error(err), zap.String("kind", p.Kind))
	}
}

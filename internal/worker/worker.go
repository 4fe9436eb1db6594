package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapterhub/backend/pkg/queue"
)

// ActivityWriter persists activity entries. *activity.Repository implements it.
type ActivityWriter interface {
	Insert(ctx context.Context, id uuid.UUID, p queue.ActivityPayload) error
}

// ActivityProcessor drains the activity queue into activity_logs.
type ActivityProcessor struct {
	repo    ActivityWriter
	queue   *queue.Queue
	logger  *zap.Logger
	backoff time.Duration
}

// NewActivityProcessor creates an activity log processor.
func NewActivityProcessor(repo ActivityWriter, q *queue.Queue, logger *zap.Logger) *ActivityProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityProcessor{repo: repo, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// WithBackoff sets the pause after a failed dequeue or job. Non-positive values are ignored.
func (p *ActivityProcessor) WithBackoff(d time.Duration) *ActivityProcessor {
	if d > 0 {
		p.backoff = d
	}
	return p
}

// Process executes one activity job.
func (p *ActivityProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeActivity {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ActivityPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.Kind == "" {
		return fmt.Errorf("activity job %s has no kind", job.ID)
	}
	id, err := uuid.Parse(job.ID)
	if err != nil {
		return fmt.Errorf("job id: %w", err)
	}
	if err := p.repo.Insert(ctx, id, payload); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	p.logger.Debug("activity recorded", zap.String("job_id", job.ID), zap.String("kind", payload.Kind))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ActivityProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("activity worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *ActivityProcessor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.backoff):
	}
}

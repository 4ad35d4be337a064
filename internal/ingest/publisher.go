package ingest

import (
	"context"
	"fmt"

	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// Publisher enqueues ingest jobs and records them as pending.
type Publisher struct {
	queue  Queue
	jobs   JobStore
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher. A nil job store skips status tracking.
func NewPublisher(queue Queue, jobs JobStore, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("ingest: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, jobs: jobs, logger: logger}
}

// Enqueue validates job, assigns it an ID when missing and publishes it.
func (p *Publisher) Enqueue(ctx context.Context, job Job) (Job, error) {
	if err := job.Validate(); err != nil {
		return Job{}, err
	}
	job, body, err := encodeJob(job)
	if err != nil {
		return Job{}, err
	}

	if p.jobs != nil {
		if err := p.jobs.PutPending(ctx, newJobRecord(job)); err != nil {
			return Job{}, err
		}
	}
	if err := p.queue.Send(ctx, body); err != nil {
		if p.jobs != nil {
			if markErr := p.jobs.MarkFailed(ctx, job.ID, "enqueue failed"); markErr != nil {
				p.logger.Warn("failed to mark unsent job", "job_id", job.ID, "error", markErr)
			}
		}
		return Job{}, fmt.Errorf("ingest: failed to enqueue job: %w", err)
	}

	p.logger.Debug("ingest job enqueued", "job_id", job.ID, "kind", job.Kind, "collection", job.Collection)
	return job, nil
}

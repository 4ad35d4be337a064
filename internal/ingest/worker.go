package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/spa-concierge/internal/observability/metrics"
	"github.com/wolfman30/spa-concierge/pkg/logging"
)

// JobRunner executes one ingest job and reports how many chunks it indexed.
type JobRunner interface {
	Run(ctx context.Context, job Job) (int, error)
}

// Worker consumes ingest jobs from the queue.
type Worker struct {
	runner JobRunner
	queue  Queue
	jobs   JobStore
	logger *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	jobTimeout       time.Duration
	metrics          *metrics.IngestMetrics
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 20
	defaultBatchSize     = 1
	defaultJobTimeout    = 5 * time.Minute
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithJobTimeout bounds how long a single job may run.
func WithJobTimeout(d time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if d > 0 {
			cfg.jobTimeout = d
		}
	}
}

func WithWorkerMetrics(m *metrics.IngestMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// NewWorker builds a worker. A nil job store skips status updates.
func NewWorker(runner JobRunner, queue Queue, jobs JobStore, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if runner == nil {
		panic("ingest: runner cannot be nil")
	}
	if queue == nil {
		panic("ingest: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		jobTimeout:       defaultJobTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{runner: runner, queue: queue, jobs: jobs, logger: logger, cfg: cfg}
}

// Start launches the consumer goroutines; they exit when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("ingest worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("ingest worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive ingest jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable ingest job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}
	logger := w.logger.With("job_id", job.ID, "kind", job.Kind, "collection", job.Collection)
	logger.Info("processing ingest job")

	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.jobTimeout)
	chunks, err := w.runner.Run(jobCtx, job)
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			// Shutting down: leave the message for redelivery.
			logger.Warn("ingest job interrupted", "error", err)
			return
		}
		logger.Error("ingest job failed", "error", err)
		w.cfg.metrics.ObserveJob(string(job.Kind), string(JobStatusFailed))
		if w.jobs != nil {
			if storeErr := w.jobs.MarkFailed(ctx, job.ID, err.Error()); storeErr != nil {
				logger.Error("failed to update job status", "error", storeErr)
			}
		}
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	w.cfg.metrics.ObserveJob(string(job.Kind), string(JobStatusCompleted))
	if w.jobs != nil {
		if storeErr := w.jobs.MarkCompleted(ctx, job.ID, chunks); storeErr != nil {
			logger.Error("failed to update job status", "error", storeErr)
		}
	}
	logger.Info("ingest job completed", "chunks", chunks)
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *Worker) deleteMessage(receiptHandle string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete ingest job message", "error", err)
	}
}

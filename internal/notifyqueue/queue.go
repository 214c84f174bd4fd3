package notifyqueue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"waterwatch/internal/config"

	"github.com/google/uuid"
)

var (
	// ErrQueueFull is returned when the outbox buffer is exhausted.
	ErrQueueFull = errors.New("notify queue full")
	// ErrQueueClosed is returned for jobs enqueued after Close.
	ErrQueueClosed = errors.New("notify queue closed")
)

// Job is one outbound side effect executed by the queue worker.
// Params: id, kind label for logs/metrics, and the action to run.
// Returns: queue unit executed in FIFO order.
type Job struct {
	ID        string
	Kind      string
	Run       func(ctx context.Context) error
	CreatedAt time.Time
}

// ResultFunc observes the final outcome of one job.
type ResultFunc func(job Job, attempts int, err error)

// Queue is a single-worker FIFO outbox. Enqueue never blocks.
// Params: buffered job channel, retry policy, logger and result hook.
// Returns: fire-and-forget executor for notification side effects.
type Queue struct {
	jobs        chan Job
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
	onResult    ResultFunc

	mu      sync.RWMutex
	closed  bool
	stopped chan struct{}
	cancel  context.CancelFunc
}

// New creates queue and starts its worker.
// Params: queue config, optional logger, and optional result hook.
// Returns: running queue.
func New(cfg config.NotifyQueue, logger *slog.Logger, onResult ResultFunc) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.Size
	if size <= 0 {
		size = 1
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		jobs:        make(chan Job, size),
		maxAttempts: attempts,
		backoff:     time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
		logger:      logger,
		onResult:    onResult,
		stopped:     make(chan struct{}),
		cancel:      cancel,
	}
	go q.work(ctx)
	return q
}

// Enqueue adds job to the outbox.
// Params: job; empty ID is filled with a random uuid.
// Returns: ErrQueueFull or ErrQueueClosed when job is dropped.
func (q *Queue) Enqueue(job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Flush waits until every job enqueued before the call has run.
// Params: context bounding the wait.
// Returns: context error, or ErrQueueClosed.
func (q *Queue) Flush(ctx context.Context) error {
	done := make(chan struct{})
	barrier := Job{Kind: "barrier", Run: func(context.Context) error {
		close(done)
		return nil
	}}
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrQueueClosed
	}
	select {
	case q.jobs <- barrier:
	case <-ctx.Done():
		q.mu.RUnlock()
		return ctx.Err()
	}
	q.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs, drains the buffer and stops the worker.
// Params: context bounding the drain; pending retries are abandoned on expiry.
// Returns: context error when drain did not finish.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.stopped:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-q.stopped
		return ctx.Err()
	}
}

func (q *Queue) work(ctx context.Context) {
	defer close(q.stopped)
	for job := range q.jobs {
		q.runJob(ctx, job)
	}
}

// runJob executes job with bounded retries; permanent errors are not retried.
func (q *Queue) runJob(ctx context.Context, job Job) {
	var err error
	attempts := 0
	for attempts < q.maxAttempts {
		attempts++
		err = job.Run(ctx)
		if err == nil || IsPermanent(err) || attempts >= q.maxAttempts {
			break
		}
		q.logger.Warn("notify job failed, retrying", "job_id", job.ID, "kind", job.Kind, "attempt", attempts, "error", err.Error())
		if !sleepContext(ctx, q.backoff*time.Duration(attempts)) {
			break
		}
	}
	if err != nil {
		q.logger.Error("notify job dropped", "job_id", job.ID, "kind", job.Kind, "attempts", attempts, "permanent", IsPermanent(err), "error", err.Error())
	}
	if q.onResult != nil && job.Kind != "barrier" {
		q.onResult(job, attempts, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// permanentError marks job failures that must not be retried.
type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }

func (e permanentError) Unwrap() error { return e.err }

// MarkPermanent wraps error as non-retryable job failure.
// Params: source error.
// Returns: wrapped permanent error (or nil when input is nil).
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether error is marked as non-retryable.
func IsPermanent(err error) bool {
	var marked permanentError
	return errors.As(err, &marked)
}

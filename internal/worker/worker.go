// Package worker runs background jobs from an in-process queue with a fixed
// pool of goroutines. Failed jobs are retried with exponential backoff
// unless the handler returns a PermanentError.
//
// Jobs live only in memory. Sessions are not durable either, so a restart
// loses nothing a queued job could still act on.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/turnover/internal/metrics"
)

var (
	// ErrQueueFull is returned by Enqueue when QueueSize jobs are waiting.
	ErrQueueFull = errors.New("job queue is full")

	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = errors.New("worker is stopped")
)

// maxRetryDelay caps the exponential backoff between attempts.
const maxRetryDelay = 5 * time.Minute

// Worker manages background job processing with concurrent workers.
type Worker struct {
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger
	queue    chan Job

	mu      sync.RWMutex
	started bool
	stopped bool
	cancel  context.CancelFunc

	// Synchronization
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger.With("component", "worker"),
		queue:    make(chan Job, config.QueueSize),
		stopCh:   make(chan struct{}),
	}, nil
}

// Register adds a job handler to the worker.
// The handler's Type() must be unique. Call this before Start().
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("Overwriting existing handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
	w.logger.Debug("Registered job handler", "job_type", jobType)
}

// Enqueue adds a job to the queue without blocking.
func (w *Worker) Enqueue(ctx context.Context, jobType string, payload interface{}, opts ...EnqueueOption) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}

	job, err := newJob(jobType, payload, w.config.MaxAttempts, opts...)
	if err != nil {
		return Job{}, err
	}
	if err := w.push(job); err != nil {
		return Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	w.logger.Debug("Enqueued job", "job_id", job.ID, "job_type", job.Type)
	return job, nil
}

// Pending returns the number of jobs waiting for a worker.
func (w *Worker) Pending() int {
	return len(w.queue)
}

func (w *Worker) push(job Job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start begins processing jobs with the configured number of concurrent
// workers. Canceling ctx aborts running jobs.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started || w.stopped {
		w.mu.Unlock()
		return
	}
	w.started = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	for i := 0; i < w.config.Concurrency; i++ {
		w.wg.Add(1)
		go w.runWorker(ctx, i+1)
	}

	w.logger.Info("Worker started", "concurrency", w.config.Concurrency, "queue_size", w.config.QueueSize)
}

// Stop signals all workers to stop and waits for them to finish.
// Running jobs get ShutdownTimeout to complete before their context is
// canceled. Jobs still queued are dropped.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	close(w.stopCh)
	cancel := w.cancel
	w.mu.Unlock()

	w.logger.Info("Stopping worker...")

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(w.config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-timer.C:
		w.logger.Warn("Worker shutdown timeout exceeded, canceling running jobs")
		if cancel != nil {
			cancel()
		}
		<-done
	}
	if cancel != nil {
		cancel()
	}

	if dropped := len(w.queue); dropped > 0 {
		w.logger.Warn("Dropped queued jobs", "count", dropped)
	}
}

// runWorker is the main loop for a worker goroutine.
func (w *Worker) runWorker(ctx context.Context, workerID int) {
	defer w.wg.Done()

	logger := w.logger.With("worker_id", workerID)
	logger.Debug("Worker started")

	for {
		select {
		case <-w.stopCh:
			logger.Debug("Worker stopping")
			return
		case job := <-w.queue:
			w.process(ctx, job, logger)
		}
	}
}

// process runs one attempt of a job and schedules a retry when allowed.
func (w *Worker) process(ctx context.Context, job Job, logger *slog.Logger) {
	job.Attempts++
	logger = logger.With("job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts)
	logger.Info("Processing job")

	done := metrics.TrackJob(job.Type)
	start := time.Now()

	err := w.executeJob(ctx, job)
	if err == nil {
		done(metrics.JobOutcomeCompleted)
		logger.Info("Job completed", "duration", time.Since(start))
		return
	}

	if IsPermanent(err) {
		done(metrics.JobOutcomeFailed)
		logger.Warn("Job failed with permanent error, will not retry", "error", err)
		return
	}
	if job.Attempts >= job.MaxAttempts || ctx.Err() != nil {
		done(metrics.JobOutcomeFailed)
		logger.Error("Job failed", "error", err, "max_attempts", job.MaxAttempts)
		return
	}

	done(metrics.JobOutcomeRetried)
	delay := retryDelay(w.config.RetryBaseDelay, job.Attempts)
	logger.Warn("Job failed, will retry", "error", err, "retry_in", delay)
	w.scheduleRetry(job, delay)
}

// executeJob runs the appropriate handler for the job with a timeout context.
func (w *Worker) executeJob(ctx context.Context, job Job) (err error) {
	handler, ok := w.handlers[job.Type]
	if !ok {
		return NewPermanentError(fmt.Errorf("no handler registered for job type: %s", job.Type))
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = NewPermanentError(fmt.Errorf("job handler panicked: %v", r))
		}
	}()

	return handler.Handle(jobCtx, job.Payload)
}

// scheduleRetry puts the job back on the queue after delay unless the
// worker stops first.
func (w *Worker) scheduleRetry(job Job, delay time.Duration) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-w.stopCh:
			return
		case <-timer.C:
		}

		if err := w.push(job); err != nil {
			w.logger.Error("Failed to requeue job", "job_id", job.ID, "job_type", job.Type, "error", err)
		}
	}()
}

// retryDelay doubles base for each attempt already made.
func retryDelay(base time.Duration, attempts int) time.Duration {
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

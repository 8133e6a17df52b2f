package worker

import (
	"fmt"
	"time"
)

// Config holds the configuration for the background job worker.
type Config struct {
	// Concurrency is the number of worker goroutines to run in parallel.
	// Default: 2
	Concurrency int

	// QueueSize is the number of jobs that may wait for a free worker.
	// Enqueue fails with ErrQueueFull beyond it.
	// Default: 64
	QueueSize int

	// JobTimeout is the maximum time a single job is allowed to run.
	// If a job exceeds this timeout, its context is canceled and the attempt fails.
	// Default: 5 minutes
	JobTimeout time.Duration

	// ShutdownTimeout is how long to wait for running jobs to complete during graceful shutdown.
	// Default: 30 seconds
	ShutdownTimeout time.Duration

	// MaxAttempts is the default number of attempts per job.
	// Default: 3
	MaxAttempts int

	// RetryBaseDelay is the delay before the first retry. It doubles per attempt.
	// Default: 2 seconds
	RetryBaseDelay time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Concurrency:     2,
		QueueSize:       64,
		JobTimeout:      5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		MaxAttempts:     3,
		RetryBaseDelay:  2 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Concurrency > 100 {
		return fmt.Errorf("concurrency too high (max 100), got %d", c.Concurrency)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", c.QueueSize)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("job timeout must be positive, got %v", c.JobTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %v", c.ShutdownTimeout)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("retry base delay must not be negative, got %v", c.RetryBaseDelay)
	}
	return nil
}

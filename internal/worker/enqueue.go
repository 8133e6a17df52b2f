package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeAnalyzeSession = "analyze_session"
)

// Job is one unit of queued work.
type Job struct {
	ID          uuid.UUID
	Type        string
	Payload     []byte
	Attempts    int
	MaxAttempts int
	EnqueuedAt  time.Time
}

// AnalyzeSessionPayload is the payload for session analysis jobs.
type AnalyzeSessionPayload struct {
	SessionID uuid.UUID `json:"session_id"`
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*Job)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(attempts int) EnqueueOption {
	return func(j *Job) {
		j.MaxAttempts = attempts
	}
}

// Enqueuer accepts jobs for background execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, payload interface{}, opts ...EnqueueOption) (Job, error)
}

// newJob marshals the payload and applies the options.
func newJob(jobType string, payload interface{}, maxAttempts int, opts ...EnqueueOption) (Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	job := Job{
		ID:          uuid.New(),
		Type:        jobType,
		Payload:     payloadJSON,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  time.Now(),
	}
	for _, opt := range opts {
		opt(&job)
	}
	if job.MaxAttempts < 1 {
		job.MaxAttempts = 1
	}
	return job, nil
}

// EnqueueAnalyzeSession enqueues a job to analyze a session whose rooms are
// all captured.
func EnqueueAnalyzeSession(ctx context.Context, q Enqueuer, sessionID uuid.UUID, opts ...EnqueueOption) (Job, error) {
	return q.Enqueue(ctx, JobTypeAnalyzeSession, AnalyzeSessionPayload{SessionID: sessionID}, opts...)
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/DukeRupert/turnover/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		Concurrency:     2,
		QueueSize:       8,
		JobTimeout:      time.Second,
		ShutdownTimeout: time.Second,
		MaxAttempts:     3,
		RetryBaseDelay:  time.Millisecond,
	}
}

// funcHandler adapts a function to JobHandler and counts calls.
type funcHandler struct {
	jobType string
	calls   atomic.Int32
	fn      func(ctx context.Context, payload []byte, attempt int) error
}

func (h *funcHandler) Type() string { return h.jobType }

func (h *funcHandler) Handle(ctx context.Context, payload []byte) error {
	n := int(h.calls.Add(1))
	return h.fn(ctx, payload, n)
}

func newWorker(t *testing.T, config Config, handlers ...JobHandler) *Worker {
	t.Helper()
	w, err := New(config, testLogger())
	require.NoError(t, err)
	for _, h := range handlers {
		w.Register(h)
	}
	return w
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", mutate: func(*Config) {}},
		{name: "concurrency too low", mutate: func(c *Config) { c.Concurrency = 0 }, wantErr: true},
		{name: "concurrency too high", mutate: func(c *Config) { c.Concurrency = 101 }, wantErr: true},
		{name: "empty queue", mutate: func(c *Config) { c.QueueSize = 0 }, wantErr: true},
		{name: "zero job timeout", mutate: func(c *Config) { c.JobTimeout = 0 }, wantErr: true},
		{name: "zero attempts", mutate: func(c *Config) { c.MaxAttempts = 0 }, wantErr: true},
		{name: "negative retry delay", mutate: func(c *Config) { c.RetryBaseDelay = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(&config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "permanent error", err: NewPermanentError(context.Canceled), want: true},
		{name: "wrapped permanent error", err: errors.Join(errors.New("x"), NewPermanentError(io.EOF)), want: true},
		{name: "regular error", err: context.Canceled, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPermanentFor(t *testing.T) {
	notFound := domain.NotFound("session.get", "session", "x")
	unavailable := domain.Errorf(domain.EUNAVAILABLE, "ai.compare", "model unavailable")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "listed code", err: notFound, want: true},
		{name: "wrapped listed code", err: fmt.Errorf("job: %w", notFound), want: true},
		{name: "unlisted code", err: unavailable, want: false},
		{name: "plain error", err: io.EOF, want: false},
		{name: "already permanent", err: NewPermanentError(io.EOF), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PermanentFor(tt.err, domain.ENOTFOUND, domain.ECONFLICT)
			assert.Equal(t, tt.want, IsPermanent(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, PermanentFor(nil, domain.ENOTFOUND))
}

func TestWorker_ProcessesJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	done := make(chan struct{})
	var got AnalyzeSessionPayload
	h := &funcHandler{jobType: JobTypeAnalyzeSession, fn: func(_ context.Context, payload []byte, _ int) error {
		defer close(done)
		return json.Unmarshal(payload, &got)
	}}

	w := newWorker(t, testConfig(), h)
	w.Start(context.Background())
	defer w.Stop()

	id := uuid.New()
	job, err := EnqueueAnalyzeSession(context.Background(), w, id)
	require.NoError(t, err)
	assert.Equal(t, JobTypeAnalyzeSession, job.Type)
	assert.Equal(t, 3, job.MaxAttempts)

	waitFor(t, done)
	assert.Equal(t, id, got.SessionID)
}

func TestWorker_RetriesUntilSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	done := make(chan struct{})
	h := &funcHandler{jobType: "flaky", fn: func(_ context.Context, _ []byte, attempt int) error {
		if attempt < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}}

	w := newWorker(t, testConfig(), h)
	w.Start(context.Background())
	defer w.Stop()

	_, err := w.Enqueue(context.Background(), "flaky", struct{}{})
	require.NoError(t, err)

	waitFor(t, done)
	assert.Equal(t, int32(3), h.calls.Load())
}

func TestWorker_StopsAfterMaxAttempts(t *testing.T) {
	defer goleak.VerifyNone(t)

	var wg sync.WaitGroup
	wg.Add(2)
	h := &funcHandler{jobType: "failing", fn: func(context.Context, []byte, int) error {
		wg.Done()
		return errors.New("always")
	}}

	w := newWorker(t, testConfig(), h)
	w.Start(context.Background())

	_, err := w.Enqueue(context.Background(), "failing", nil, WithMaxAttempts(2))
	require.NoError(t, err)

	wg.Wait()
	time.Sleep(20 * time.Millisecond)
	w.Stop()
	assert.Equal(t, int32(2), h.calls.Load())
}

func TestWorker_PermanentErrorIsNotRetried(t *testing.T) {
	defer goleak.VerifyNone(t)

	called := make(chan struct{})
	h := &funcHandler{jobType: "bad", fn: func(context.Context, []byte, int) error {
		close(called)
		return NewPermanentError(errors.New("invalid payload"))
	}}

	w := newWorker(t, testConfig(), h)
	w.Start(context.Background())

	_, err := w.Enqueue(context.Background(), "bad", nil)
	require.NoError(t, err)

	waitFor(t, called)
	time.Sleep(20 * time.Millisecond)
	w.Stop()
	assert.Equal(t, int32(1), h.calls.Load())
}

func TestWorker_PanicIsPermanent(t *testing.T) {
	defer goleak.VerifyNone(t)

	called := make(chan struct{})
	h := &funcHandler{jobType: "panics", fn: func(context.Context, []byte, int) error {
		close(called)
		panic("boom")
	}}

	w := newWorker(t, testConfig(), h)
	w.Start(context.Background())

	_, err := w.Enqueue(context.Background(), "panics", nil)
	require.NoError(t, err)

	waitFor(t, called)
	time.Sleep(20 * time.Millisecond)
	w.Stop()
	assert.Equal(t, int32(1), h.calls.Load())
}

func TestWorker_JobTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	seen := make(chan error, 1)
	h := &funcHandler{jobType: "slow", fn: func(ctx context.Context, _ []byte, _ int) error {
		<-ctx.Done()
		seen <- ctx.Err()
		return ctx.Err()
	}}

	config := testConfig()
	config.JobTimeout = 10 * time.Millisecond
	w := newWorker(t, config, h)
	w.Start(context.Background())
	defer w.Stop()

	_, err := w.Enqueue(context.Background(), "slow", nil, WithMaxAttempts(1))
	require.NoError(t, err)

	select {
	case err := <-seen:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not timed out")
	}
}

func TestWorker_QueueFull(t *testing.T) {
	config := testConfig()
	config.QueueSize = 1
	w := newWorker(t, config)

	_, err := w.Enqueue(context.Background(), "any", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Pending())

	_, err = w.Enqueue(context.Background(), "any", nil)
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestWorker_EnqueueAfterStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newWorker(t, testConfig())
	w.Start(context.Background())
	w.Stop()
	w.Stop()

	_, err := w.Enqueue(context.Background(), "any", nil)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestWorker_StopDropsQueuedJobs(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := &funcHandler{jobType: "any", fn: func(context.Context, []byte, int) error { return nil }}
	w := newWorker(t, testConfig(), h)

	for range 2 {
		_, err := w.Enqueue(context.Background(), "any", nil)
		require.NoError(t, err)
	}
	w.Stop()

	assert.Equal(t, 2, w.Pending())
	assert.Equal(t, int32(0), h.calls.Load())
}

func TestWorker_EnqueueRejectsBadPayload(t *testing.T) {
	w := newWorker(t, testConfig())

	_, err := w.Enqueue(context.Background(), "any", make(chan int))
	assert.Error(t, err)
	assert.Equal(t, 0, w.Pending())
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, retryDelay(time.Second, 1))
	assert.Equal(t, 2*time.Second, retryDelay(time.Second, 2))
	assert.Equal(t, 4*time.Second, retryDelay(time.Second, 3))
	assert.Equal(t, maxRetryDelay, retryDelay(time.Minute, 10))
}

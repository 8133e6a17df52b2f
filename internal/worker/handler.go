package worker

import (
	"context"
	"errors"
	"slices"

	"github.com/DukeRupert/turnover/internal/domain"
)

// JobHandler executes one type of queued job.
type JobHandler interface {
	// Type returns the job type this handler is registered under.
	Type() string

	// Handle runs the job with its JSON payload. Failures are retried
	// unless they are permanent (see Permanent and PermanentFor).
	Handle(ctx context.Context, payload []byte) error
}

// PermanentError is a job failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError marks err as permanent.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// PermanentFor marks err as permanent when its domain error code is one of
// codes. Other errors, and nil, are returned unchanged.
func PermanentFor(err error, codes ...string) error {
	if err == nil || IsPermanent(err) {
		return err
	}
	if slices.Contains(codes, domain.ErrorCode(err)) {
		return NewPermanentError(err)
	}
	return err
}

// IsPermanent reports whether err, or anything it wraps, is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}

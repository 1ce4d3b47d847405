package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrJobNotFound is returned by read paths when no job row exists.
var ErrJobNotFound = errors.New("analysis job not found")

// ValidationError rejects a submission before any side effect.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// DispatchError means the worker was unreachable or rejected the run request.
// The job stays pending; the caller may resubmit.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("failed to dispatch analysis job: %v", e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// TimeoutError means a pull-mode wait exceeded its bound. The job has been
// failed for bookkeeping; the condition is retryable with a shorter input or
// a larger sampling step.
type TimeoutError struct {
	JobID   uuid.UUID
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("analysis job %s timed out after %s", e.JobID, e.Elapsed)
}

// PersistenceError means a store write failed and the job state must be
// re-read before acting on it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("job store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

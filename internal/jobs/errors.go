package jobs

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownJob        = errors.New("unknown job")
	ErrQueueFull         = errors.New("job queue is full")
	ErrDispatcherStopped = errors.New("dispatcher is stopped")
)

// SubmissionError is returned when the backend does not accept a job.
type SubmissionError struct {
	JobKey string
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to submit job %q: %v", e.JobKey, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking job.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// ExecutionError is the final error of a job that exhausted its attempts.
type ExecutionError struct {
	JobKey   string
	Attempts int
	Err      error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Detail renders the attempt count, the wrapped error chain and, for panics,
// the goroutine stack.
func (e *ExecutionError) Detail() string {
	detail := fmt.Sprintf("job %q failed after %d attempt(s): %+v", e.JobKey, e.Attempts, e.Err)
	var panicErr *PanicError
	if errors.As(e.Err, &panicErr) {
		detail += "\n\n" + string(panicErr.Stack)
	}
	return detail
}

package domain

import "errors"

var (
	// ErrInvalidMessage is returned when a queue message fails validation
	ErrInvalidMessage = errors.New("invalid job message")

	// ErrMaxAttemptsExceeded is returned when a job has used up its delivery attempts
	ErrMaxAttemptsExceeded = errors.New("max attempts exceeded")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

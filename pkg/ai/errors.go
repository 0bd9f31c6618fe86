// Package ai provides common types and utilities shared by the capture, playback and
// completion collaborators. It defines the error classification and the retry policy
// used across providers.
package ai

import (
	"errors"
	"time"
)

// Common error types used across AI providers
var (
	// ErrRecoverable indicates a temporary failure that may succeed if retried.
	// Examples: network drop while recognising, completion service overloaded.
	ErrRecoverable = errors.New("recoverable AI provider error")

	// ErrFatal indicates a permanent failure that will not succeed if retried.
	// Examples: microphone permission denied, unsupported language, malformed payload.
	ErrFatal = errors.New("fatal AI provider error")
)

// RetryConfig configures the linear backoff applied to recoverable errors.
// Attempt n (1-based) waits BaseDelay*n.
type RetryConfig struct {
	MaxRetries int           // Maximum number of retry attempts
	BaseDelay  time.Duration // Delay unit multiplied by the attempt number
}

// DefaultRetryConfig retries three times after 1s, 2s and 3s.
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1000 * time.Millisecond,
}

// Delay returns the wait before the given 1-based attempt.
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return c.BaseDelay * time.Duration(attempt)
}

// IsRecoverable checks if an error is recoverable and should be retried
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// IsFatal checks if an error is fatal and should not be retried
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// RetryableError wraps an underlying error with retry classification
type RetryableError struct {
	Underlying error
	Retryable  bool
	Message    string
}

func (e *RetryableError) Error() string {
	if e.Message != "" {
		if e.Underlying != nil {
			return e.Message + ": " + e.Underlying.Error()
		}
		return e.Message
	}
	return e.Underlying.Error()
}

// Unwrap exposes both the classification sentinel and the underlying cause.
func (e *RetryableError) Unwrap() []error {
	class := ErrFatal
	if e.Retryable {
		class = ErrRecoverable
	}
	if e.Underlying == nil {
		return []error{class}
	}
	return []error{class, e.Underlying}
}

// NewRecoverableError creates a recoverable error with context
func NewRecoverableError(underlying error, message string) error {
	return &RetryableError{
		Underlying: underlying,
		Retryable:  true,
		Message:    message,
	}
}

// NewFatalError creates a fatal error with context
func NewFatalError(underlying error, message string) error {
	return &RetryableError{
		Underlying: underlying,
		Retryable:  false,
		Message:    message,
	}
}

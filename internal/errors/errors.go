package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Application exit codes define the standard exit statuses for the application.
const (
	ExitSuccess         = 0   // Indicates successful execution.
	ExitErrorGeneric    = 1   // Indicates a generic error.
	ExitErrorTimeout    = 2   // Indicates the operation timed out.
	ExitErrorMerge      = 3   // Indicates a read, worker or merge failure.
	ExitErrorConfig     = 4   // Indicates a configuration error.
	ExitErrorValidation = 5   // Indicates an input file was rejected.
	ExitErrorCanceled   = 130 // Indicates the operation was canceled (e.g., SIGINT).
)

// ConfigError represents a user configuration error, such as invalid flags or
// values.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

// Error returns the error message for a ConfigError.
func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// ReadError reports that an input file could not be fully read.
type ReadError struct {
	// Name is the name of the file being read.
	Name string
	// Cause is the underlying I/O error.
	Cause error
}

// Error returns a message naming the file and the cause.
func (e ReadError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("failed to read %s", e.Name)
	}
	return fmt.Sprintf("failed to read %s: %v", e.Name, e.Cause)
}

// Unwrap returns the underlying I/O error.
func (e ReadError) Unwrap() error { return e.Cause }

// WorkerError reports that a worker failed to process a chunk. The message is
// the worker's own description of the failure.
type WorkerError struct {
	// Index is the index of the work unit that failed.
	Index int
	// Message is the worker's error message.
	Message string
}

// Error returns a message naming the failed chunk.
func (e WorkerError) Error() string {
	return fmt.Sprintf("chunk %d: %s", e.Index, e.Message)
}

// MergeError reports a failure while concatenating payloads, such as a byte
// length mismatch after reassembly.
type MergeError struct {
	// Cause is the underlying error.
	Cause error
}

// Error returns the merge failure message.
func (e MergeError) Error() string { return "failed to merge files: " + e.Cause.Error() }

// Unwrap returns the underlying cause.
func (e MergeError) Unwrap() error { return e.Cause }

// ValidationError represents an input validation failure. It identifies which
// field failed validation and provides a human-readable explanation.
type ValidationError struct {
	// Field is the name of the input that failed validation.
	Field string
	// Message explains the validation failure.
	Message string
}

// Error returns a formatted message describing the validation failure.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for %q: %s", e.Field, e.Message)
}

// WrapError wraps an error with additional context using fmt.Errorf and %w.
// Returns nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsContextError checks if the error is a context cancellation or deadline exceeded error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ExitCodeFor maps an error to the process exit code that best describes it.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var (
		cfgErr    ConfigError
		valErr    ValidationError
		readErr   ReadError
		workerErr WorkerError
		mergeErr  MergeError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ExitErrorTimeout
	case errors.Is(err, context.Canceled):
		return ExitErrorCanceled
	case errors.As(err, &cfgErr):
		return ExitErrorConfig
	case errors.As(err, &valErr):
		return ExitErrorValidation
	case errors.As(err, &readErr), errors.As(err, &workerErr), errors.As(err, &mergeErr):
		return ExitErrorMerge
	}
	return ExitErrorGeneric
}

package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique identifier for specific error conditions in Auris.
type ErrorCode int

const (
	ErrCodeUnknown       ErrorCode = 1000
	ErrCodeConfigInvalid ErrorCode = 1001

	// Prerequisites
	ErrCodeModelInvalid ErrorCode = 2001

	// Worker launch & handshake
	ErrCodeProcessStartFail ErrorCode = 3002
	ErrCodeStartupCrashed   ErrorCode = 3003
	ErrCodeChannelBroken    ErrorCode = 3004
	ErrCodeAlreadyStarting  ErrorCode = 3005
	ErrCodeWorkerExited     ErrorCode = 3006

	// Registry
	ErrCodeRegistryFailed ErrorCode = 4001
)

// AurisError is a custom error type that provides structured error information,
// including an error code, the operation being performed, and the underlying cause.
type AurisError struct {
	// Code is the specific error code.
	Code ErrorCode
	// Msg is a human-readable description of the error.
	Msg string
	// Operation describes the action being performed when the error occurred.
	Operation string
	// Err is the underlying error that caused this error, if any.
	Err error
}

// Error returns a formatted string representation of the error.
func (e *AurisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %s (cause: %v)", e.Code, e.Operation, e.Msg, e.Err)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Operation, e.Msg)
}

// Unwrap returns the underlying error.
func (e *AurisError) Unwrap() error {
	return e.Err
}

// New creates a new AurisError with the specified code, operation, message, and underlying error.
func New(code ErrorCode, op, msg string, err error) error {
	return &AurisError{
		Code:      code,
		Msg:       msg,
		Operation: op,
		Err:       err,
	}
}

// ModelValidationError reports a model prerequisite that failed before any
// worker process was created.
type ModelValidationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ModelValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] model check: %s: %s (cause: %v)", ErrCodeModelInvalid, e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("[%d] model check: %s: %s", ErrCodeModelInvalid, e.Path, e.Reason)
}

func (e *ModelValidationError) Unwrap() error { return e.Err }

// StartupError is returned when the worker exits before completing the
// readiness handshake. Shutdown has already been requested when it is
// returned, so the same startup must not be retried.
type StartupError struct {
	ExitCode int
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("[%d] startup: recognizer worker exited before ready (exit code %d)", ErrCodeStartupCrashed, e.ExitCode)
}

// CodeOf returns the ErrorCode carried anywhere in err's chain, or
// ErrCodeUnknown when none is present.
func CodeOf(err error) ErrorCode {
	var ae *AurisError
	var mv *ModelValidationError
	var se *StartupError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &se):
		return ErrCodeStartupCrashed
	case errors.As(err, &mv):
		return ErrCodeModelInvalid
	case errors.As(err, &ae):
		return ae.Code
	default:
		return ErrCodeUnknown
	}
}

// Personal.AI order the ending

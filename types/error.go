package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

const (
	ErrInvalidConfig     ErrorCode = "INVALID_CONFIG"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrTimeout           ErrorCode = "TIMEOUT"
	ErrExecutionAborted  ErrorCode = "EXECUTION_ABORTED"
	ErrMissingResult     ErrorCode = "MISSING_RESULT"
	ErrResultNotFound    ErrorCode = "RESULT_NOT_FOUND"
	ErrInternalError     ErrorCode = "INTERNAL_ERROR"
)

// CrashMessage is the message prefix recorded on every Crashed state.
const CrashMessage = "Execution was aborted"

// Error is a structured error with code, message and optional cause.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// NewConfigError creates a definition-time configuration error.
func NewConfigError(message string) *Error {
	return NewError(ErrInvalidConfig, message)
}

// NewTimeoutError creates the timeout failure raised by the supervisor.
// The message embeds the configured budget in seconds.
func NewTimeoutError(seconds float64) *Error {
	e := NewError(ErrTimeout, fmt.Sprintf("task run timed out after %g second(s)", seconds))
	e.Retryable = true
	return e
}

// IsTimeout reports whether err is a supervisor timeout.
func IsTimeout(err error) bool {
	return GetErrorCode(err) == ErrTimeout
}

// NewCrash tags an error as an unrecoverable, process-level interrupt.
// The tag is set deliberately at the calling boundary; the classifier never
// infers it from arbitrary error values.
func NewCrash(cause error) *Error {
	e := NewError(ErrExecutionAborted, CrashMessage)
	e.Cause = cause
	return e
}

// NewMissingResult signals that a caller requested a result from a state
// that persisted none.
func NewMissingResult(message string) *Error {
	return NewError(ErrMissingResult, message)
}

// IsMissingResult reports whether err is a missing-result contract violation.
func IsMissingResult(err error) bool {
	return GetErrorCode(err) == ErrMissingResult
}

// Severity classifies a failure for the engine's state machine.
type Severity int

const (
	// SeverityFailure is an ordinary application error: retryable per policy,
	// terminal Failed when the budget is exhausted.
	SeverityFailure Severity = iota
	// SeverityCrash is an unrecoverable interrupt: never retried, always
	// terminal Crashed and re-raised.
	SeverityCrash
)

// Classify distinguishes ordinary failures from crashes. Crashes are errors
// explicitly tagged via NewCrash and caller-context cancellation, which means
// the execution substrate is being torn down.
func Classify(err error) Severity {
	if err == nil {
		return SeverityFailure
	}
	if GetErrorCode(err) == ErrExecutionAborted {
		return SeverityCrash
	}
	if errors.Is(err, context.Canceled) {
		return SeverityCrash
	}
	return SeverityFailure
}

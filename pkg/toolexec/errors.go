// Package toolexec runs agent tool calls with input validation, a single
// retry for transient failures, error classification and tracing.
package toolexec

import (
	"errors"
	"fmt"
)

// Code is a stable, user-surface error code.
type Code string

const (
	CodeAIServiceUnavailable Code = "AI_SERVICE_UNAVAILABLE"
	CodeDatabase             Code = "DATABASE_ERROR"
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeRateLimited          Code = "RATE_LIMITED"
	CodeTimeout              Code = "TIMEOUT"
	CodeInternal             Code = "INTERNAL_ERROR"
	CodeNotFound             Code = "NOT_FOUND"
)

// ToolError is the typed error every tool call fails with.
type ToolError struct {
	Tool       string
	Code       Code
	Detail     string // internal diagnostic, never shown to users
	Field      string // offending input field for validation errors
	Retryable  bool
	WasRetried bool
	Cause      error
}

func (e *ToolError) Error() string {
	var msg string
	switch {
	case e.Detail != "":
		msg = e.Detail
	case e.Cause != nil:
		msg = e.Cause.Error()
	default:
		msg = string(e.Code)
	}
	if e.Tool != "" {
		return fmt.Sprintf("%s: %s: %s", e.Tool, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// IsRetryable exposes the explicit flag to the classifier.
func (e *ToolError) IsRetryable() bool {
	return e.Retryable
}

// UserMessage is the short, tool-aware text for user-visible surfaces.
func (e *ToolError) UserMessage() string {
	return UserMessage(e.Tool, e.Code, e.Field, e.Detail)
}

// NewValidationError reports a malformed input field. Validation errors are never retried.
func NewValidationError(field, format string, args ...any) *ToolError {
	return &ToolError{
		Code:   CodeValidation,
		Field:  field,
		Detail: fmt.Sprintf(format, args...),
	}
}

// AsToolError unwraps err into a *ToolError if there is one.
func AsToolError(err error) (*ToolError, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// explicitlyRetryable is implemented by errors that already know whether a
// retry can help.
type explicitlyRetryable interface {
	IsRetryable() bool
}

type flaggedError struct {
	err       error
	retryable bool
}

func (f *flaggedError) Error() string     { return f.err.Error() }
func (f *flaggedError) Unwrap() error     { return f.err }
func (f *flaggedError) IsRetryable() bool { return f.retryable }

// WithRetryable attaches an explicit retryable flag that overrides every
// other classification rule.
func WithRetryable(err error, retryable bool) error {
	if err == nil {
		return nil
	}
	return &flaggedError{err: err, retryable: retryable}
}

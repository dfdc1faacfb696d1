// Package errors provides structured error types for fraudsim.
// All errors include a category, code, message, and retryable flag so the
// generation loop and the sinks can decide consistently what to do on failure.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategorySink       ErrorCategory = "SINK"
	ErrCategoryOutput     ErrorCategory = "OUTPUT"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidConfig      = "INVALID_CONFIG"
	CodeInvalidProbability = "INVALID_PROBABILITY"
	CodeInvalidRange       = "INVALID_RANGE"

	// Sink codes
	CodePutFailed       = "PUT_FAILED"
	CodeEncodeFailed    = "ENCODE_FAILED"
	CodeSinkUnavailable = "SINK_UNAVAILABLE"
	CodeRejected        = "REJECTED"

	// Output codes
	CodeWriteFailed = "WRITE_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// SimError is the structured error type used throughout the system.
type SimError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *SimError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *SimError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *SimError) Is(target error) bool {
	var t *SimError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new SimError.
func New(category ErrorCategory, code, message string) *SimError {
	return &SimError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new SimError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *SimError {
	return &SimError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *SimError) WithDetails(details map[string]interface{}) *SimError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var se *SimError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a SimError.
func GetCategory(err error) ErrorCategory {
	var se *SimError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a SimError.
func GetCode(err error) string {
	var se *SimError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategorySink && code == CodePutFailed:
		return true
	case category == ErrCategorySink && code == CodeSinkUnavailable:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *SimError {
	return New(ErrCategoryValidation, code, message)
}

func NewSinkError(code, message string, cause error) *SimError {
	return Wrap(ErrCategorySink, code, message, cause)
}

func NewOutputError(message string, cause error) *SimError {
	return Wrap(ErrCategoryOutput, CodeWriteFailed, message, cause)
}

func NewInternalError(message string, cause error) *SimError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

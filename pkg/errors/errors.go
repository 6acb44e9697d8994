// Package errors defines the error taxonomy of the catalog loader.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeUnknown          = "UNKNOWN_ERROR"
	CodeIOError          = "IO_ERROR"
	CodeParseError       = "PARSE_ERROR"
	CodeMissingReference = "MISSING_REFERENCE"
	CodeScopeViolation   = "SCOPE_VIOLATION"
	CodeDuplicate        = "DUPLICATE"
	CodeValidation       = "VALIDATION_ERROR"
	CodeDecryptError     = "DECRYPT_ERROR"
	CodeInterrupted      = "INTERRUPTED"
	CodePhaseFailure     = "PHASE_FAILURE"
	CodeConfigError      = "CONFIG_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeDatabaseError    = "DATABASE_ERROR"
	CodeStorageError     = "STORAGE_ERROR"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Interrupted wraps a context error. A nil or non-context error yields a plain INTERRUPTED error.
func Interrupted(message string, err error) *AppError {
	if err == nil {
		err = context.Canceled
	}
	return Wrap(CodeInterrupted, message, err)
}

// Common error instances.
var (
	ErrIOError          = New(CodeIOError, "i/o error")
	ErrParseError       = New(CodeParseError, "parse error")
	ErrMissingReference = New(CodeMissingReference, "missing reference")
	ErrScopeViolation   = New(CodeScopeViolation, "scope violation")
	ErrDuplicate        = New(CodeDuplicate, "duplicate object")
	ErrValidation       = New(CodeValidation, "validation error")
	ErrDecryptError     = New(CodeDecryptError, "decrypt error")
	ErrInterrupted      = New(CodeInterrupted, "interrupted")
	ErrPhaseFailure     = New(CodePhaseFailure, "phase failure")
	ErrConfigError      = New(CodeConfigError, "configuration error")
	ErrNotFound         = New(CodeNotFound, "resource not found")
	ErrDatabaseError    = New(CodeDatabaseError, "database error")
	ErrStorageError     = New(CodeStorageError, "storage error")
)

// IsParseError checks if the error is a parse error.
func IsParseError(err error) bool {
	return errors.Is(err, ErrParseError)
}

// IsMissingReference checks if the error is a dangling required reference.
func IsMissingReference(err error) bool {
	return errors.Is(err, ErrMissingReference)
}

// IsScopeViolation checks if the error is a scope violation.
func IsScopeViolation(err error) bool {
	return errors.Is(err, ErrScopeViolation)
}

// IsDuplicate checks if the error is a natural key collision.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsInterrupted checks if the error is an interruption, either coded or a bare context error.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsPhaseFailure checks if the error aborted a load phase.
func IsPhaseFailure(err error) bool {
	return errors.Is(err, ErrPhaseFailure)
}

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

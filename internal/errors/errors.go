// Package errors provides coded application errors shared by the lead store,
// the exporters and the front ends.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of failure independently of its message.
type ErrorCode string

const (
	// General errors
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrValidation   ErrorCode = "VALIDATION_ERROR"

	// Database errors
	ErrDatabase  ErrorCode = "DATABASE_ERROR"
	ErrMigration ErrorCode = "MIGRATION_FAILED"

	// Lead store errors
	ErrIndexOutOfRange          ErrorCode = "INDEX_OUT_OF_RANGE"
	ErrLeadNotFound             ErrorCode = "LEAD_NOT_FOUND"
	ErrInvalidField             ErrorCode = "INVALID_FIELD"
	ErrInvalidValue             ErrorCode = "INVALID_VALUE"
	ErrPersistedStateUnreadable ErrorCode = "PERSISTED_STATE_UNREADABLE"
	ErrStorageRead              ErrorCode = "STORAGE_READ_FAILED"
	ErrStorageWrite             ErrorCode = "STORAGE_WRITE_FAILED"

	// Export errors
	ErrDestinationWrite  ErrorCode = "DESTINATION_WRITE_FAILED"
	ErrExportFailed      ErrorCode = "EXPORT_FAILED"
	ErrUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCorruptedArchive  ErrorCode = "CORRUPTED_ARCHIVE"
	ErrInvalidPassword   ErrorCode = "INVALID_PASSWORD"

	// Configuration errors
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
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

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any AppError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain, or
// ErrInternal when there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

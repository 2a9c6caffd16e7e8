package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All packages MUST use these constants instead of hardcoded strings.
const (
	// Input-format errors. These are permanent: redelivering the same input
	// can never succeed, so callers must not retry them.
	ErrCodeInvalidCollectionID ErrorCode = "invalid_collection_id"
	ErrCodeUnparsableLocation  ErrorCode = "unparsable_location"
	ErrCodeUnparsableGranuleID ErrorCode = "unparsable_granule_id"
	ErrCodeMalformedGranuleID  ErrorCode = "malformed_granule_id"
	ErrCodeMalformedReport     ErrorCode = "malformed_report"

	// Query execution errors (Athena).
	ErrCodeQueryFailed  ErrorCode = "query_failed"
	ErrCodeQueryTimeout ErrorCode = "query_timeout"

	// Upstream/storage errors. Transient: the same call may succeed later.
	ErrCodeStorageUnavailable ErrorCode = "storage_unavailable"
	ErrCodeUpstreamThrottled  ErrorCode = "upstream_throttled"

	// Internal
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// Permanent reports whether an error with this code describes malformed input
// that can never succeed on redelivery. The response worker uses this to decide
// between dead-lettering a notification and returning an error for retry.
func (c ErrorCode) Permanent() bool {
	switch c {
	case ErrCodeInvalidCollectionID,
		ErrCodeUnparsableLocation,
		ErrCodeUnparsableGranuleID,
		ErrCodeMalformedGranuleID,
		ErrCodeMalformedReport:
		return true
	default:
		return false
	}
}

// AppError is the standard application error type used throughout the pipeline.
// All domain errors should be expressed as AppError to enable consistent error
// formatting, permanent/transient classification, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Permanent reports whether this error's code marks unretryable input.
func (e *AppError) Permanent() bool {
	return e.Code.Permanent()
}

// WithDetails returns a copy of the error with the provided details merged in.
// This is useful for adding context without mutating the original error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// IsPermanent reports whether err, anywhere in its chain, is an AppError whose
// code marks unretryable input. Non-AppError errors are treated as transient.
func IsPermanent(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Permanent()
	}
	return false
}

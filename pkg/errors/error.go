// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99)
//   - Validation errors (100-199): invalid orders, quantities, configuration
//   - Data/Repository errors (200-299): missing records, query failures
//   - Quote errors (300-399): upstream quote providers unavailable or malformed
//   - Advisor errors (400-499): advisor unavailable, rate limited, bad output
//   - Order lifecycle errors (500-599): rejected or failed order operations
//   - Ledger errors (600-699): account consistency violations
//   - Session errors (700-799): trading outside the permitted session
//
// Usage:
//
//	err := errors.New(errors.ErrCodeInsufficientFunds, "cash balance too low")
//	err := errors.Newf(errors.ErrCodeDataNotFound, "no quote for %s", symbol)
//	err := errors.Wrap(errors.ErrCodeQueryFailed, "failed to load account", cause)
//	if errors.HasCode(err, errors.ErrCodeAdvisorRateLimited) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsRateLimited reports whether err represents an upstream rate limit.
// Callers use this to back off instead of treating the failure as fatal.
func IsRateLimited(err error) bool {
	return HasCode(err, ErrCodeAdvisorRateLimited)
}

// IsRejection reports whether err is a validation rejection that should be
// surfaced to the caller as a rejected operation rather than a hard failure.
func IsRejection(err error) bool {
	switch GetCode(err) {
	case ErrCodeInsufficientFunds, ErrCodeInsufficientShares,
		ErrCodeOutsideSession, ErrCodePositionAlreadyOpen,
		ErrCodeInvalidOrder, ErrCodeInvalidQuantity, ErrCodeInvalidPrice:
		return true
	default:
		return false
	}
}

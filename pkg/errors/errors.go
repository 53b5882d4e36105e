package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeWrite       ErrorType = "write"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API or filesystem error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given type
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap creates an Error of the given type around an underlying cause
func Wrap(errorType ErrorType, message string, err error) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// TypeOf extracts the ErrorType from any error in the chain.
// Untyped errors report ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeWrite:
		return false
	default:
		return false
	}
}

// IsRetryableError reports whether the error's type should be retried.
// Untyped errors are treated as transient.
func IsRetryableError(err error) bool {
	var typed *Error
	if stderrors.As(err, &typed) {
		return IsRetryable(typed.Type)
	}
	return true
}

// IsAuth reports whether the error is an authentication failure.
func IsAuth(err error) bool {
	return TypeOf(err) == ErrorTypeAuth
}

// IsNotFound reports whether the error is a missing-resource failure.
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}

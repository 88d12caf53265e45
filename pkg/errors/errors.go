package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of a failure
type ErrorType string

const (
	// ErrorTypeTransport covers network failures and non-2xx HTTP statuses
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeProtocol covers response bodies that are not JSON or lack the expected envelope
	ErrorTypeProtocol ErrorType = "protocol"
	// ErrorTypePostProcessing covers a single post that could not be turned into media descriptors
	ErrorTypePostProcessing ErrorType = "post_processing"
	// ErrorTypeConfiguration covers invalid settings detected before a run starts
	ErrorTypeConfiguration ErrorType = "configuration"

	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error is a typed failure carrying an optional HTTP status code and cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transport creates a transport error for the given status code (0 for network failures)
func Transport(code int, message string, cause error) *Error {
	return &Error{Type: ErrorTypeTransport, Message: message, Code: code, Err: cause}
}

// Protocol creates a protocol error
func Protocol(message string, cause error) *Error {
	return &Error{Type: ErrorTypeProtocol, Message: message, Err: cause}
}

// PostProcessing creates a post-processing error
func PostProcessing(message string, cause error) *Error {
	return &Error{Type: ErrorTypePostProcessing, Message: message, Err: cause}
}

// Configuration creates a configuration error
func Configuration(message string, cause error) *Error {
	return &Error{Type: ErrorTypeConfiguration, Message: message, Err: cause}
}

// FromStatus classifies a non-2xx HTTP status into a typed error
func FromStatus(code int, message string) *Error {
	t := ErrorTypeTransport
	switch {
	case code == http.StatusTooManyRequests:
		t = ErrorTypeRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		t = ErrorTypeAuth
	case code == http.StatusNotFound:
		t = ErrorTypeNotFound
	case code >= 500:
		t = ErrorTypeServerError
	}
	return &Error{Type: t, Message: message, Code: code}
}

// TypeOf returns the type of the first *Error in err's chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain contains an *Error of the given type
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsTransportFailure reports whether err is any HTTP-level failure, including
// the status-specific subtypes
func IsTransportFailure(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeTransport, ErrorTypeRateLimit, ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeServerError:
		return true
	}
	return false
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransport, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableError is IsRetryable applied to an error chain. Errors that
// carry no type are treated as retryable network failures.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if !stderrors.As(err, &e) {
		return true
	}
	return IsRetryable(e.Type)
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0, http.StatusTooManyRequests:
		return true
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	default:
		return statusCode >= 500
	}
}

package errors

import "fmt"

// ErrorType classifies pipeline errors by the boundary they occur at
type ErrorType string

const (
	// ErrorTypeSetup means a browsing context or entry point could not be
	// acquired at all. Fatal to the current target only.
	ErrorTypeSetup ErrorType = "setup"
	// ErrorTypeAuth means every authentication strategy was exhausted.
	// Non-fatal: the run continues unauthenticated.
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeExtraction is a per-item field extraction failure.
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeFetch is a per-media-reference download failure.
	ErrorTypeFetch ErrorType = "fetch"
	// ErrorTypePersistence is a document store write failure.
	ErrorTypePersistence ErrorType = "persistence"

	ErrorTypeNetwork   ErrorType = "network"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeNotFound  ErrorType = "not_found"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error is a classified pipeline error with an optional HTTP status code
// and wrapped cause
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
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// NewSetupFault marks a target-fatal setup failure
func NewSetupFault(message string, err error) *Error {
	return &Error{Type: ErrorTypeSetup, Message: message, Err: err}
}

// NewAuthFailure marks exhaustion of all authentication strategies
func NewAuthFailure(message string, err error) *Error {
	return &Error{Type: ErrorTypeAuth, Message: message, Err: err}
}

// NewExtractionError marks a per-item extraction failure
func NewExtractionError(message string, err error) *Error {
	return &Error{Type: ErrorTypeExtraction, Message: message, Err: err}
}

// NewFetchError marks a per-reference download failure
func NewFetchError(message string, code int, err error) *Error {
	return &Error{Type: ErrorTypeFetch, Message: message, Code: code, Err: err}
}

// NewPersistenceError marks a document store write failure
func NewPersistenceError(message string, err error) *Error {
	return &Error{Type: ErrorTypePersistence, Message: message, Err: err}
}

// IsType reports whether err is an *Error of the given type
func IsType(err error, t ErrorType) bool {
	e, ok := err.(*Error)
	return ok && e.Type == t
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypePersistence:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeExtraction, ErrorTypeSetup:
		return false
	default:
		return false
	}
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

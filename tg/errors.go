package tg

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors - use with errors.Is()
var (
	// API errors
	ErrUnauthorized    = errors.New("tgflow: unauthorized (invalid token)")
	ErrForbidden       = errors.New("tgflow: forbidden")
	ErrNotFound        = errors.New("tgflow: not found")
	ErrTooManyRequests = errors.New("tgflow: too many requests")

	// Client errors
	ErrCircuitOpen      = errors.New("tgflow: circuit breaker open")
	ErrMaxRetries       = errors.New("tgflow: max retries exceeded")
	ErrResponseTooLarge = errors.New("tgflow: response too large")
	ErrMemoryCeiling    = errors.New("tgflow: in-process memory ceiling exceeded")

	// Validation errors
	ErrInvalidToken  = errors.New("tgflow: invalid bot token format")
	ErrInvalidMethod = errors.New("tgflow: invalid API method name")
	ErrAsyncDisabled = errors.New("tgflow: async calls require the pooled transport")
)

// ResponseParameters contains information about why a request was unsuccessful.
type ResponseParameters struct {
	MigrateToChatID int64 `json:"migrate_to_chat_id,omitempty"`
	RetryAfter      int   `json:"retry_after,omitempty"`
}

// APIError is returned when the service responded but reported failure.
// It carries the numeric error code and description from the response body.
// Use errors.As() to extract details, errors.Is() to match sentinels.
type APIError struct {
	Code        int
	Description string
	RetryAfter  time.Duration
	Method      string              // API method that failed
	Parameters  *ResponseParameters // Additional response parameters
	cause       error               // Underlying sentinel for errors.Is()
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("tgflow: %s failed: %s (code=%d, retry_after=%s)",
			e.Method, e.Description, e.Code, e.RetryAfter)
	}
	return fmt.Sprintf("tgflow: %s failed: %s (code=%d)", e.Method, e.Description, e.Code)
}

// Unwrap returns the underlying sentinel error for errors.Is() support.
func (e *APIError) Unwrap() error { return e.cause }

// IsRateLimit reports whether the error is the service's rate-limit signal.
func (e *APIError) IsRateLimit() bool { return e.Code == 429 }

// IsRetryable returns true if the error is temporary and may succeed on retry.
func (e *APIError) IsRetryable() bool {
	return e.Code == 429 || (e.Code >= 500 && e.Code <= 504)
}

// NewAPIError creates an APIError with automatic sentinel detection.
func NewAPIError(method string, code int, description string) *APIError {
	return &APIError{
		Code:        code,
		Description: description,
		Method:      method,
		cause:       detectSentinel(code),
	}
}

// NewAPIErrorWithRetry creates an APIError with retry information.
func NewAPIErrorWithRetry(method string, code int, description string, retryAfter time.Duration) *APIError {
	return &APIError{
		Code:        code,
		Description: description,
		Method:      method,
		RetryAfter:  retryAfter,
		cause:       detectSentinel(code),
	}
}

func detectSentinel(code int) error {
	switch code {
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 429:
		return ErrTooManyRequests
	}
	return nil
}

// NetworkError is a transport-level failure: connection refused, timeout,
// TLS failure. Retried up to the configured count before surfacing.
type NetworkError struct {
	Method string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("tgflow: %s: network failure: %v", e.Method, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying failure was a timeout.
func (e *NetworkError) Timeout() bool {
	var t interface{ Timeout() bool }
	if errors.As(e.Err, &t) {
		return t.Timeout()
	}
	return false
}

// NewNetworkError wraps a transport failure.
func NewNetworkError(method string, err error) *NetworkError {
	return &NetworkError{Method: method, Err: err}
}

// ValidationError represents a request or configuration validation error.
// Never retried, always surfaced immediately.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tgflow: validation: %s - %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

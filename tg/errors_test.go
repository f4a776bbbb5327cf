package tg

import (
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorSentinelDetection(t *testing.T) {
	tests := []struct {
		code     int
		sentinel error
	}{
		{401, ErrUnauthorized},
		{403, ErrForbidden},
		{404, ErrNotFound},
		{429, ErrTooManyRequests},
	}

	for _, tt := range tests {
		err := NewAPIError("getMe", tt.code, "description")
		assert.ErrorIs(t, err, tt.sentinel, "code %d", tt.code)
	}

	// Codes without a sentinel still work with errors.As.
	plain := NewAPIError("getMe", 500, "server error")
	var apiErr *APIError
	require.ErrorAs(t, error(plain), &apiErr)
	assert.Equal(t, 500, apiErr.Code)
}

func TestAPIErrorRetryability(t *testing.T) {
	assert.True(t, NewAPIError("m", 429, "").IsRetryable())
	assert.True(t, NewAPIError("m", 500, "").IsRetryable())
	assert.True(t, NewAPIError("m", 504, "").IsRetryable())
	assert.False(t, NewAPIError("m", 400, "").IsRetryable())
	assert.False(t, NewAPIError("m", 404, "").IsRetryable())

	assert.True(t, NewAPIError("m", 429, "").IsRateLimit())
	assert.False(t, NewAPIError("m", 500, "").IsRateLimit())
}

func TestAPIErrorMessageIncludesRetryAfter(t *testing.T) {
	err := NewAPIErrorWithRetry("sendMessage", 429, "Too Many Requests", 5*time.Second)
	assert.Contains(t, err.Error(), "retry_after=5s")
	assert.Contains(t, err.Error(), "sendMessage")
	assert.Equal(t, 5*time.Second, err.RetryAfter)
}

func TestNetworkErrorTimeout(t *testing.T) {
	timeoutErr := &net.DNSError{Err: "timeout", IsTimeout: true}
	err := NewNetworkError("getMe", timeoutErr)
	assert.True(t, err.Timeout())
	assert.ErrorIs(t, error(err), error(timeoutErr))

	plain := NewNetworkError("getMe", errors.New("connection refused"))
	assert.False(t, plain.Timeout())
}

func TestValidationErrorMessage(t *testing.T) {
	err := NewValidationError("chat_id", "missing")
	assert.Contains(t, err.Error(), "chat_id")
	assert.Contains(t, err.Error(), "missing")
}

func TestWrappedSentinelsSurviveChains(t *testing.T) {
	inner := NewAPIError("getMe", 401, "unauthorized")
	wrapped := fmt.Errorf("call failed: %w", inner)

	assert.ErrorIs(t, wrapped, ErrUnauthorized)

	var apiErr *APIError
	require.ErrorAs(t, wrapped, &apiErr)
	assert.Equal(t, "getMe", apiErr.Method)
}

package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// Error represents a validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation: %s - %s", e.Field, e.Message)
}

// New creates a new validation error.
func New(field, message string) *Error {
	return &Error{Field: field, Message: message}
}

// Newf creates a new validation error with formatted message.
func Newf(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

var (
	tokenRegex  = regexp.MustCompile(`^[0-9]+:[A-Za-z0-9_-]+$`)
	methodRegex = regexp.MustCompile(`^[a-zA-Z]+$`)
	// scheme://[user:pass@]host[:port]
	proxyRegex = regexp.MustCompile(`^(https?|socks5)://(?:[^:@/\s]+:[^@/\s]*@)?[A-Za-z0-9.\-]+(?::[0-9]{1,5})?$`)
)

// Token validates a bot token against the {bot_id}:{secret} pattern,
// where bot_id is numeric and secret is alphanumeric with dash/underscore.
func Token(token string) error {
	if token == "" {
		return New("token", "cannot be empty")
	}
	if !tokenRegex.MatchString(token) {
		return New("token", "invalid format, expected {bot_id}:{secret}")
	}
	return nil
}

// MethodName validates an API method name: letters only.
func MethodName(method string) error {
	if method == "" {
		return New("method", "cannot be empty")
	}
	if !methodRegex.MatchString(method) {
		return Newf("method", "must be alphabetic, got %q", method)
	}
	return nil
}

// ProxyURL reports whether a proxy URL is lexically valid.
// Invalid proxies are skipped rather than failing the call, so this
// returns a bool instead of an error.
func ProxyURL(url string) bool {
	return url != "" && proxyRegex.MatchString(url)
}

// WebhookURL validates a webhook URL (must be HTTPS).
func WebhookURL(url string) error {
	if url == "" {
		return New("url", "cannot be empty")
	}
	if !strings.HasPrefix(url, "https://") {
		return New("url", "webhook URL must use HTTPS")
	}
	return nil
}

// Positive validates that a value is positive.
func Positive(field string, value int) error {
	if value <= 0 {
		return Newf(field, "must be positive, got %d", value)
	}
	return nil
}

// NonNegative validates that a value is non-negative.
func NonNegative(field string, value int) error {
	if value < 0 {
		return Newf(field, "cannot be negative, got %d", value)
	}
	return nil
}

// InRange validates that a value is within a range.
func InRange(field string, value, min, max int) error {
	if value < min || value > max {
		return Newf(field, "must be between %d and %d, got %d", min, max, value)
	}
	return nil
}

package dispatch

import (
	"context"
	"net/http"

	"github.com/prilive-com/tgflow/internal/httpclient"
)

// Transport issues one HTTP exchange against the remote API.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Send performs the request and returns the raw response.
	Send(ctx context.Context, req *http.Request) (*http.Response, error)

	// SupportsAsync reports whether non-blocking calls are available.
	SupportsAsync() bool

	// Close releases held resources.
	Close() error
}

// PooledTransport shares one connection-pooled HTTP client across calls
// and supports both blocking and async dispatch.
type PooledTransport struct {
	client *http.Client
}

// NewPooledTransport creates a pooled transport from the given config.
func NewPooledTransport(cfg httpclient.Config) *PooledTransport {
	return &PooledTransport{client: httpclient.NewPooled(cfg)}
}

// NewPooledTransportWithClient wraps an existing HTTP client (useful for testing).
func NewPooledTransportWithClient(client *http.Client) *PooledTransport {
	return &PooledTransport{client: client}
}

func (t *PooledTransport) Send(ctx context.Context, req *http.Request) (*http.Response, error) {
	return t.client.Do(req.WithContext(ctx))
}

func (t *PooledTransport) SupportsAsync() bool { return true }

func (t *PooledTransport) Close() error {
	if tr, ok := t.client.Transport.(*http.Transport); ok {
		tr.CloseIdleConnections()
	}
	return nil
}

// SimpleTransport performs one blocking HTTP call per request with no
// connection reuse. It holds no state between calls.
type SimpleTransport struct {
	cfg httpclient.Config
}

// NewSimpleTransport creates a simple per-call transport.
func NewSimpleTransport(cfg httpclient.Config) *SimpleTransport {
	return &SimpleTransport{cfg: cfg}
}

func (t *SimpleTransport) Send(ctx context.Context, req *http.Request) (*http.Response, error) {
	// Keep-alives are disabled, so the connection closes with the body.
	client := httpclient.NewSimple(t.cfg)
	return client.Do(req.WithContext(ctx))
}

func (t *SimpleTransport) SupportsAsync() bool { return false }

func (t *SimpleTransport) Close() error { return nil }

// Verify interface compliance.
var (
	_ Transport = (*PooledTransport)(nil)
	_ Transport = (*SimpleTransport)(nil)
)

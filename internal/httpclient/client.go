// Package httpclient builds the HTTP clients used by the transport
// backends: a connection-pooled client for long-lived use and a
// single-shot client for per-call use. Proxy settings are applied here.
package httpclient

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	xproxy "golang.org/x/net/proxy"

	"github.com/prilive-com/tgflow/internal/validate"
)

// Config holds HTTP client configuration.
type Config struct {
	// Timeouts
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	TLSTimeout     time.Duration
	IdleTimeout    time.Duration
	KeepAlive      time.Duration // 0 disables keep-alives

	// Connection pool
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int

	// Proxies. HTTPProxy takes precedence over SOCKS5Proxy.
	// Lexically invalid URLs are skipped, not fatal.
	HTTPProxy   string
	SOCKS5Proxy string

	// TLS
	InsecureSkipVerify bool // Only for testing
}

// DefaultConfig returns sensible defaults for the Bot API.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:      30 * time.Second,
		ConnectTimeout:      10 * time.Second,
		TLSTimeout:          10 * time.Second,
		IdleTimeout:         90 * time.Second,
		KeepAlive:           30 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		InsecureSkipVerify:  false,
	}
}

// NewPooled creates a connection-pooled HTTP client. The client may be
// shared and reused across calls.
func NewPooled(cfg Config) *http.Client {
	return &http.Client{
		Transport: newTransport(cfg),
		Timeout:   cfg.RequestTimeout,
	}
}

// NewSimple creates an HTTP client that holds no idle connections between
// calls. Each call dials fresh and the connection is closed afterwards.
func NewSimple(cfg Config) *http.Client {
	t := newTransport(cfg)
	t.DisableKeepAlives = true
	t.MaxIdleConns = 0
	t.MaxIdleConnsPerHost = 0
	return &http.Client{
		Transport: t,
		Timeout:   cfg.RequestTimeout,
	}
}

func newTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: cfg.KeepAlive,
	}

	t := &http.Transport{
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		},
		TLSHandshakeTimeout:   cfg.TLSTimeout,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleTimeout,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	applyProxy(t, cfg, dialer)
	return t
}

// applyProxy wires proxy settings onto the transport. An HTTP proxy takes
// precedence over SOCKS5. Credentials embedded in user:pass@host:port URLs
// are extracted and applied separately from the proxy address. Lexically
// invalid URLs leave the transport untouched.
func applyProxy(t *http.Transport, cfg Config, dialer *net.Dialer) {
	if validate.ProxyURL(cfg.HTTPProxy) {
		if u, err := url.Parse(cfg.HTTPProxy); err == nil {
			t.Proxy = http.ProxyURL(u)
			return
		}
	}

	if !validate.ProxyURL(cfg.SOCKS5Proxy) {
		return
	}
	u, err := url.Parse(cfg.SOCKS5Proxy)
	if err != nil {
		return
	}

	var auth *xproxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &xproxy.Auth{
			User:     u.User.Username(),
			Password: password,
		}
	}

	socks, err := xproxy.SOCKS5("tcp", u.Host, auth, dialer)
	if err != nil {
		return
	}

	if cd, ok := socks.(xproxy.ContextDialer); ok {
		t.DialContext = cd.DialContext
	} else {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return socks.Dial(network, addr)
		}
	}
}

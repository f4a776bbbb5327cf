package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/prilive-com/tgflow/internal/httpclient"
	"github.com/prilive-com/tgflow/internal/memguard"
	"github.com/prilive-com/tgflow/internal/resilience"
	"github.com/prilive-com/tgflow/internal/scrub"
	"github.com/prilive-com/tgflow/internal/validate"
	"github.com/prilive-com/tgflow/tg"
)

const (
	maxResponseSize = 10 << 20 // 10MB
)

// Sleeper abstracts time-based waiting for testing.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// realSleeper uses actual time.
type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// CallError is the failure of one call after validation, retries, and the
// rate-limit resubmission have all been exhausted.
type CallError struct {
	Method   string
	Params   Params
	Attempts int
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("tgflow: %s failed after %d attempt(s): %v", e.Method, e.Attempts, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// RecoveryHandler intercepts a failed call at the outermost retry
// boundary. When registered, its return value fully replaces error
// propagation and becomes the call's result.
type RecoveryHandler func(*CallError) (*tg.Result, error)

// Client is the request dispatch engine. Every API call funnels through
// Call or CallAsync.
type Client struct {
	config      Config
	transport   Transport
	logger      *slog.Logger
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[*tg.Result]
	sleeper     Sleeper
	guard       *memguard.Guard
	recovery    RecoveryHandler
	middlewares []Middleware
	invoke      CallFunc
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTransport sets a custom transport backend.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithBaseURL sets the API base URL (useful for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.config.BaseURL = url
	}
}

// WithRetries sets max retry attempts.
func WithRetries(max int) Option {
	return func(c *Client) {
		c.config.MaxRetries = max
	}
}

// WithRetryPolicy sets the delay strategy between failed attempts.
func WithRetryPolicy(p resilience.RetryPolicy) Option {
	return func(c *Client) {
		c.config.Retry = p
	}
}

// WithRateLimit sets global rate limiting parameters.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.config.GlobalRPS = rps
		c.config.GlobalBurst = burst
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithSleeper sets a custom sleeper for retry timing (useful for testing).
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleeper = s
	}
}

// WithMiddleware appends middleware to the chain. The first-registered
// middleware sees the call first and the response last.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, mw...)
	}
}

// WithRecoveryHandler registers the error-recovery escape hatch.
func WithRecoveryHandler(h RecoveryHandler) Option {
	return func(c *Client) {
		c.recovery = h
	}
}

// WithMemoryCeiling sets the advisory memory ceiling in bytes.
func WithMemoryCeiling(bytes uint64) Option {
	return func(c *Client) {
		c.config.MemoryCeiling = bytes
		c.guard = memguard.New(bytes)
	}
}

// New creates a new Client with the given token and options.
// The token is validated once here; a malformed token fails before any
// network I/O can occur.
func New(token string, opts ...Option) (*Client, error) {
	cfg := DefaultConfig()
	cfg.Token = tg.SecretToken(token)
	return NewFromConfig(cfg, opts...)
}

// NewFromConfig creates a Client from a Config.
func NewFromConfig(cfg Config, opts ...Option) (*Client, error) {
	if err := validate.Token(cfg.Token.Value()); err != nil {
		return nil, fmt.Errorf("%w: %v", tg.ErrInvalidToken, err)
	}

	c := &Client{config: cfg}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.transport == nil {
		c.transport = newTransportFromConfig(c.config)
	}

	if c.limiter == nil && c.config.GlobalRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(c.config.GlobalRPS), c.config.GlobalBurst)
	}

	if c.sleeper == nil {
		c.sleeper = realSleeper{}
	}

	if c.guard == nil {
		c.guard = memguard.New(c.config.MemoryCeiling)
	}

	c.breaker = resilience.NewBreaker[*tg.Result](resilience.BreakerConfig{
		Name:         "tgflow-dispatch",
		MaxRequests:  c.config.BreakerMaxRequests,
		Interval:     c.config.BreakerInterval,
		Timeout:      c.config.BreakerTimeout,
		FailureRatio: 0.5,
		MinRequests:  3,
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name, from, to string) {
			c.logger.Info("circuit breaker state changed",
				"name", name,
				"from", from,
				"to", to,
			)
		},
	})

	c.invoke = chain(c.send, c.middlewares)

	return c, nil
}

func newTransportFromConfig(cfg Config) Transport {
	hc := httpclient.DefaultConfig()
	hc.RequestTimeout = cfg.RequestTimeout
	hc.IdleTimeout = cfg.IdleTimeout
	hc.MaxIdleConns = cfg.MaxIdleConns
	hc.HTTPProxy = cfg.HTTPProxy
	hc.SOCKS5Proxy = cfg.SOCKS5Proxy
	hc.InsecureSkipVerify = cfg.InsecureSkipVerify
	if !cfg.KeepAlive {
		hc.KeepAlive = -1
	}

	if cfg.Transport == TransportSimple {
		return NewSimpleTransport(hc)
	}
	return NewPooledTransport(hc)
}

// Close releases transport resources. In-flight calls complete normally
// or with context errors.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Call performs one API call synchronously: validate, normalize, run the
// middleware chain, retry on failure, decode. Blocks until the call
// succeeds, exhausts its retry budget, or ctx is cancelled.
func (c *Client) Call(ctx context.Context, method string, params Params) (*tg.Result, error) {
	res, err := c.call(ctx, method, params)
	if err == nil {
		return res, nil
	}

	if c.recovery != nil {
		var callErr *CallError
		if errors.As(err, &callErr) {
			return c.recovery(callErr)
		}
	}
	return nil, err
}

// CallAsync performs the call without blocking and returns a Future.
// Only available with the pooled transport; with any other backend it is
// a configuration error, signaled immediately and never retried.
func (c *Client) CallAsync(ctx context.Context, method string, params Params) (*Future, error) {
	if !c.transport.SupportsAsync() {
		return nil, fmt.Errorf("%w", tg.ErrAsyncDisabled)
	}

	fut := newFuture()
	go func() {
		fut.resolve(c.Call(ctx, method, params))
	}()
	return fut, nil
}

func (c *Client) call(ctx context.Context, method string, params Params) (*tg.Result, error) {
	if !c.guard.Allow() {
		return nil, &CallError{Method: method, Params: params, Err: tg.ErrMemoryCeiling}
	}

	if err := validate.MethodName(method); err != nil {
		return nil, &CallError{Method: method, Params: params, Err: fmt.Errorf("%w: %v", tg.ErrInvalidMethod, err)}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req := &Request{Method: method, Params: params}

	var lastErr error
	rateLimitRetried := false
	attempts := 0

	for {
		result, err := c.invoke(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Rate limiting gets one extra wait-and-resubmit cycle with the
		// server-specified interval, outside the ordinary retry budget.
		var apiErr *tg.APIError
		if !rateLimitRetried && errors.As(err, &apiErr) && apiErr.IsRateLimit() && apiErr.RetryAfter > 0 {
			rateLimitRetried = true
			c.logger.Warn("rate limited, resubmitting once",
				"method", method,
				"retry_after", apiErr.RetryAfter,
			)
			if serr := c.sleeper.Sleep(ctx, apiErr.RetryAfter); serr != nil {
				return nil, serr
			}
			continue
		}

		attempts++
		c.logger.Warn("call attempt failed",
			"method", method,
			"attempt", attempts,
			"error", err,
		)

		if !isRetryable(err) {
			return nil, &CallError{Method: method, Params: params, Attempts: attempts, Err: err}
		}

		if attempts > c.config.MaxRetries {
			return nil, &CallError{
				Method:   method,
				Params:   params,
				Attempts: attempts,
				Err:      fmt.Errorf("%w: %w", tg.ErrMaxRetries, lastErr),
			}
		}

		if serr := c.sleeper.Sleep(ctx, c.config.Retry.Backoff(attempts)); serr != nil {
			return nil, serr
		}
	}
}

// send is the terminal link of the middleware chain: it performs the
// actual transport exchange through the circuit breaker.
func (c *Client) send(ctx context.Context, req *Request) (*tg.Result, error) {
	form, err := normalizeParams(req.Params)
	if err != nil {
		return nil, tg.NewValidationError("params", err.Error())
	}

	result, err := c.breaker.Execute(func() (*tg.Result, error) {
		return c.doRequest(ctx, req.Method, form)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", tg.ErrCircuitOpen, err)
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, method string, form wireForm) (*tg.Result, error) {
	url := fmt.Sprintf("%s/bot%s/%s", c.config.BaseURL, c.config.Token.Value(), method)

	var httpReq *http.Request
	var err error

	if form.hasUploads() {
		// Any file parameter forces the whole request to multipart,
		// streamed via io.Pipe.
		pr, pw := io.Pipe()
		encoder := NewMultipartEncoder(pw)
		contentType := encoder.ContentType()

		go func() {
			if encErr := encoder.Encode(form); encErr != nil {
				pw.CloseWithError(fmt.Errorf("failed to encode multipart request: %w", encErr))
				return
			}
			if encErr := encoder.Close(); encErr != nil {
				pw.CloseWithError(fmt.Errorf("failed to close multipart encoder: %w", encErr))
				return
			}
			pw.Close()
		}()

		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
		if err != nil {
			pr.Close()
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", contentType)
	} else {
		body := form.fields.Encode()
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	httpReq.Header.Set("Accept", "application/json")

	if c.config.Debug {
		c.logger.Debug("api request",
			"method", method,
			"multipart", form.hasUploads(),
		)
	}

	resp, err := c.transport.Send(ctx, httpReq)
	if err != nil {
		return nil, tg.NewNetworkError(method, scrub.TokenFromError(err, c.config.Token))
	}
	defer resp.Body.Close()

	// Read maxResponseSize+1 to detect overflow without false positive
	limitedReader := io.LimitReader(resp.Body, maxResponseSize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, tg.NewNetworkError(method, err)
	}

	if int64(len(body)) > maxResponseSize {
		return nil, tg.ErrResponseTooLarge
	}

	result, err := decodeResult(method, body)
	if err != nil {
		return nil, err
	}

	if !result.OK {
		// Parse retry_after: JSON body (primary) + HTTP header (fallback)
		retryAfter := parseRetryAfter(result, resp)
		if retryAfter > 0 {
			return nil, tg.NewAPIErrorWithRetry(method, result.ErrorCode, result.Description, retryAfter)
		}
		return nil, tg.NewAPIError(method, result.ErrorCode, result.Description)
	}

	return result, nil
}

func decodeResult(method string, body []byte) (*tg.Result, error) {
	var result tg.Result
	if err := json.Unmarshal(body, &result); err != nil {
		// An undecodable body is an API-level failure, not a transport one.
		return nil, tg.NewAPIError(method, 0, fmt.Sprintf("failed to parse response: %v", err))
	}
	return &result, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	// Circuit breaker errors are not retryable
	if errors.Is(err, tg.ErrCircuitOpen) {
		return false
	}

	var valErr *tg.ValidationError
	if errors.As(err, &valErr) {
		return false
	}

	var netErr *tg.NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *tg.APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	return false
}

// isBreakerSuccess determines if an error should count as a circuit breaker failure.
// Only server errors (5xx) and network errors trip the breaker.
// Client errors (4xx) including 429 are NOT breaker failures.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *tg.APIError
	if errors.As(err, &apiErr) {
		// 429 = rate pressure, handled via retry_after, not the breaker.
		return apiErr.Code >= 400 && apiErr.Code < 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Network errors, timeouts trip the breaker
	return false
}

// parseRetryAfter extracts retry_after from JSON body (primary) or HTTP header (fallback).
func parseRetryAfter(result *tg.Result, httpResp *http.Response) time.Duration {
	if after := result.RetryAfter(); after > 0 {
		return time.Duration(after) * time.Second
	}

	if httpResp != nil {
		if retryHeader := httpResp.Header.Get("Retry-After"); retryHeader != "" {
			if seconds, err := strconv.Atoi(retryHeader); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return 0
}

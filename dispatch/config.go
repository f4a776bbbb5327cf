package dispatch

import (
	"os"
	"strconv"
	"time"

	"github.com/prilive-com/tgflow/internal/resilience"
	"github.com/prilive-com/tgflow/tg"
)

// TransportKind selects the transport backend.
type TransportKind string

const (
	// TransportPooled reuses a shared connection pool across calls and
	// supports both blocking and async calls.
	TransportPooled TransportKind = "pooled"

	// TransportSimple dials fresh for every call and is blocking only.
	TransportSimple TransportKind = "simple"
)

// Config holds dispatch engine configuration.
// Immutable after construction; consulted on every call.
type Config struct {
	// Bot token
	Token tg.SecretToken

	// API settings
	BaseURL        string
	Transport      TransportKind
	RequestTimeout time.Duration
	KeepAlive      bool
	MaxIdleConns   int
	IdleTimeout    time.Duration

	// Proxies. HTTPProxy is consulted before SOCKS5Proxy; a lexically
	// invalid proxy URL is skipped, never fatal.
	HTTPProxy   string
	SOCKS5Proxy string

	// TLS
	InsecureSkipVerify bool

	// Retry settings
	MaxRetries int
	Retry      resilience.RetryPolicy

	// Rate limiting
	GlobalRPS   float64
	GlobalBurst int

	// Circuit breaker
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration

	// MemoryCeiling refuses new calls once in-process heap usage exceeds
	// this many bytes. 0 disables the check.
	MemoryCeiling uint64

	// Debug enables request/response debug logging.
	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:            "https://api.telegram.org",
		Transport:          TransportPooled,
		RequestTimeout:     30 * time.Second,
		KeepAlive:          true,
		MaxIdleConns:       100,
		IdleTimeout:        90 * time.Second,
		MaxRetries:         3,
		Retry:              resilience.DefaultRetryPolicy(),
		GlobalRPS:          30,
		GlobalBurst:        10,
		BreakerMaxRequests: 5,
		BreakerInterval:    60 * time.Second,
		BreakerTimeout:     30 * time.Second,
	}
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	cfg.Token = tg.SecretToken(getEnv("TGFLOW_BOT_TOKEN", ""))

	if url := getEnv("TGFLOW_API_BASE_URL", ""); url != "" {
		cfg.BaseURL = url
	}

	switch getEnv("TGFLOW_TRANSPORT", "pooled") {
	case "pooled":
		cfg.Transport = TransportPooled
	case "simple":
		cfg.Transport = TransportSimple
	default:
		return nil, tg.NewValidationError("TGFLOW_TRANSPORT", "must be 'pooled' or 'simple'")
	}

	if d, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "30s")); err == nil {
		cfg.RequestTimeout = d
	}

	cfg.KeepAlive = getEnv("KEEP_ALIVE", "true") == "true"
	cfg.HTTPProxy = getEnv("HTTP_PROXY_URL", "")
	cfg.SOCKS5Proxy = getEnv("SOCKS5_PROXY_URL", "")
	cfg.InsecureSkipVerify = getEnv("TLS_SKIP_VERIFY", "false") == "true"
	cfg.Debug = getEnv("DEBUG", "false") == "true"

	if i, err := strconv.Atoi(getEnv("MAX_RETRIES", "3")); err == nil {
		cfg.MaxRetries = i
	}

	if d, err := time.ParseDuration(getEnv("RETRY_BASE_WAIT", "1s")); err == nil {
		cfg.Retry.BaseWait = d
	}

	if d, err := time.ParseDuration(getEnv("RETRY_MAX_WAIT", "30s")); err == nil {
		cfg.Retry.MaxWait = d
	}

	if f, err := strconv.ParseFloat(getEnv("RETRY_FACTOR", "2.0"), 64); err == nil {
		cfg.Retry.Multiplier = f
	}

	if f, err := strconv.ParseFloat(getEnv("RATE_LIMIT_REQUESTS", "30"), 64); err == nil {
		cfg.GlobalRPS = f
	}

	if i, err := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "10")); err == nil {
		cfg.GlobalBurst = i
	}

	if i, err := strconv.ParseUint(getEnv("BREAKER_MAX_REQUESTS", "5"), 10, 32); err == nil {
		cfg.BreakerMaxRequests = uint32(i)
	}

	if d, err := time.ParseDuration(getEnv("BREAKER_INTERVAL", "60s")); err == nil {
		cfg.BreakerInterval = d
	}

	if d, err := time.ParseDuration(getEnv("BREAKER_TIMEOUT", "30s")); err == nil {
		cfg.BreakerTimeout = d
	}

	if i, err := strconv.ParseUint(getEnv("MEMORY_CEILING_BYTES", "0"), 10, 64); err == nil {
		cfg.MemoryCeiling = i
	}

	return &cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

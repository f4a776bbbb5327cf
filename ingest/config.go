package ingest

import (
	"os"
	"strconv"
	"time"

	"github.com/prilive-com/tgflow/tg"
)

// Mode selects how updates arrive.
type Mode string

const (
	// ModeWebhook processes one update per inbound HTTP request.
	ModeWebhook Mode = "webhook"

	// ModePolling runs an unbounded getUpdates loop.
	ModePolling Mode = "polling"
)

// telegramCIDRs are the published source ranges for Bot API webhook
// deliveries. Used when IP restriction is enabled.
var telegramCIDRs = []string{
	"149.154.160.0/20",
	"91.108.4.0/22",
}

// Config holds ingestion engine configuration.
type Config struct {
	Mode Mode

	// Webhook settings
	SecretToken  tg.SecretToken // X-Telegram-Bot-Api-Secret-Token header
	RestrictIPs  bool           // reject sources outside AllowedCIDRs
	AllowedCIDRs []string       // defaults to the published API ranges
	MaxBodySize  int64          // webhook request body limit in bytes

	// Webhook flood protection
	FloodRPS   float64
	FloodBurst int

	// Dispatch settings
	MinSpacing time.Duration // floor between consecutive dispatches
	StoreTTL   time.Duration // dedup record retention

	// Polling settings
	PollLimit        int           // updates per getUpdates batch
	PollTimeout      time.Duration // long-poll timeout passed upstream
	IdleFloor        time.Duration // idle delay after an empty batch
	IdleIncrement    time.Duration // idle delay growth per empty batch
	IdleCap          time.Duration // idle delay ceiling
	FailureBackoff   time.Duration // base backoff after a fetch failure
	FailureCap       time.Duration // fetch failure backoff ceiling
	MaxFetchFailures int           // consecutive failures before fatal stop
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Mode:             ModePolling,
		AllowedCIDRs:     telegramCIDRs,
		MaxBodySize:      1 << 20,
		FloodRPS:         30,
		FloodBurst:       60,
		StoreTTL:         24 * time.Hour,
		PollLimit:        100,
		PollTimeout:      30 * time.Second,
		IdleFloor:        100 * time.Millisecond,
		IdleIncrement:    100 * time.Millisecond,
		IdleCap:          time.Second,
		FailureBackoff:   time.Second,
		FailureCap:       30 * time.Second,
		MaxFetchFailures: 10,
	}
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	switch getEnv("TGFLOW_INGEST_MODE", "polling") {
	case "polling":
		cfg.Mode = ModePolling
	case "webhook":
		cfg.Mode = ModeWebhook
	default:
		return nil, tg.NewValidationError("TGFLOW_INGEST_MODE", "must be 'polling' or 'webhook'")
	}

	cfg.SecretToken = tg.SecretToken(getEnv("WEBHOOK_SECRET_TOKEN", ""))
	cfg.RestrictIPs = getEnv("WEBHOOK_RESTRICT_IPS", "false") == "true"

	if f, err := strconv.ParseFloat(getEnv("WEBHOOK_FLOOD_RPS", "30"), 64); err == nil {
		cfg.FloodRPS = f
	}

	if i, err := strconv.Atoi(getEnv("WEBHOOK_FLOOD_BURST", "60")); err == nil {
		cfg.FloodBurst = i
	}

	if d, err := time.ParseDuration(getEnv("MIN_UPDATE_SPACING", "0s")); err == nil {
		cfg.MinSpacing = d
	}

	if d, err := time.ParseDuration(getEnv("DEDUP_TTL", "24h")); err == nil {
		cfg.StoreTTL = d
	}

	if i, err := strconv.Atoi(getEnv("POLL_LIMIT", "100")); err == nil {
		cfg.PollLimit = i
	}

	if d, err := time.ParseDuration(getEnv("POLL_TIMEOUT", "30s")); err == nil {
		cfg.PollTimeout = d
	}

	if i, err := strconv.Atoi(getEnv("POLL_MAX_FAILURES", "10")); err == nil {
		cfg.MaxFetchFailures = i
	}

	return &cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

package resilience

import (
	"crypto/rand"
	"math/big"
	"time"
)

// RetryPolicy computes the wait before a retry attempt. The delay strategy
// is configurable: a Multiplier of 1.0 yields a constant delay, anything
// greater yields exponential backoff capped at MaxWait.
type RetryPolicy struct {
	BaseWait   time.Duration // Initial wait duration
	MaxWait    time.Duration // Maximum wait duration
	Multiplier float64       // Backoff multiplier (1.0 = constant delay)
	Jitter     float64       // Jitter factor (0.0-1.0)
}

// DefaultRetryPolicy returns exponential backoff with jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseWait:   time.Second,
		MaxWait:    30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
	}
}

// ConstantRetryPolicy returns a fixed delay between attempts.
func ConstantRetryPolicy(wait time.Duration) RetryPolicy {
	return RetryPolicy{
		BaseWait:   wait,
		MaxWait:    wait,
		Multiplier: 1.0,
	}
}

// Backoff returns the wait before the given retry attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	wait := float64(p.BaseWait)
	for i := 1; i < attempt; i++ {
		wait *= p.Multiplier
	}

	if wait > float64(p.MaxWait) {
		wait = float64(p.MaxWait)
	}

	// Apply jitter using crypto/rand
	if p.Jitter > 0 {
		jitterRange := wait * p.Jitter
		n, err := rand.Int(rand.Reader, big.NewInt(int64(jitterRange*2)))
		if err == nil {
			wait += float64(n.Int64()) - jitterRange
		}
	}

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

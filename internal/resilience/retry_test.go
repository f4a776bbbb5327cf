package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstantRetryPolicy(t *testing.T) {
	p := ConstantRetryPolicy(500 * time.Millisecond)

	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, 500*time.Millisecond, p.Backoff(attempt), "attempt %d", attempt)
	}
}

func TestExponentialBackoffGrowth(t *testing.T) {
	p := RetryPolicy{
		BaseWait:   time.Second,
		MaxWait:    30 * time.Second,
		Multiplier: 2.0,
	}

	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 8*time.Second, p.Backoff(4))
}

func TestBackoffCapsAtMaxWait(t *testing.T) {
	p := RetryPolicy{
		BaseWait:   time.Second,
		MaxWait:    5 * time.Second,
		Multiplier: 2.0,
	}

	assert.Equal(t, 5*time.Second, p.Backoff(10))
}

func TestJitterStaysWithinBounds(t *testing.T) {
	p := RetryPolicy{
		BaseWait:   time.Second,
		MaxWait:    30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
	}

	for i := 0; i < 50; i++ {
		wait := p.Backoff(2)
		assert.GreaterOrEqual(t, wait, 1600*time.Millisecond)
		assert.LessOrEqual(t, wait, 2400*time.Millisecond)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, time.Second, p.BaseWait)
	assert.Equal(t, 30*time.Second, p.MaxWait)
	assert.Equal(t, 2.0, p.Multiplier)
}

package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterFailureRun(t *testing.T) {
	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 3
	cb := NewBreaker[int](cfg)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, err := cb.Execute(func() (int, error) { return 0, boom })
		require.ErrorIs(t, err, boom)
	}

	assert.True(t, IsOpen(cb))

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerStaysClosedUnderMinRequests(t *testing.T) {
	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 5
	cb := NewBreaker[int](cfg)

	boom := errors.New("boom")
	for i := 0; i < 4; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, boom })
	}

	assert.False(t, IsOpen(cb))
}

func TestBreakerHonorsIsSuccessful(t *testing.T) {
	soft := errors.New("client error")

	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 3
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, soft)
	}
	cb := NewBreaker[int](cfg)

	for i := 0; i < 10; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, soft })
	}

	assert.False(t, IsOpen(cb))
}

func TestBreakerReportsStateChanges(t *testing.T) {
	var transitions []string

	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 2
	cfg.Timeout = time.Minute
	cfg.OnStateChange = func(name, from, to string) {
		transitions = append(transitions, from+"->"+to)
	}
	cb := NewBreaker[int](cfg)

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, boom })
	}

	require.NotEmpty(t, transitions)
	assert.Equal(t, "closed->open", transitions[0])
}

package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreMarkAndHas(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	seen, err := s.Has(ctx, "100")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.MarkProcessed(ctx, "100", time.Minute))

	seen, err = s.Has(ctx, "100")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewMemoryStore(WithClock(func() time.Time { return clock() }))
	ctx := context.Background()

	require.NoError(t, s.MarkProcessed(ctx, "100", time.Minute))

	seen, err := s.Has(ctx, "100")
	require.NoError(t, err)
	assert.True(t, seen)

	clock = func() time.Time { return now.Add(2 * time.Minute) }

	seen, err = s.Has(ctx, "100")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Zero(t, s.Len())
}

func TestMemoryStoreDefaultTTLForZero(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := NewMemoryStore(WithClock(func() time.Time { return clock() }))
	ctx := context.Background()

	require.NoError(t, s.MarkProcessed(ctx, "100", 0))

	clock = func() time.Time { return now.Add(23 * time.Hour) }
	seen, err := s.Has(ctx, "100")
	require.NoError(t, err)
	assert.True(t, seen)

	clock = func() time.Time { return now.Add(25 * time.Hour) }
	seen, err = s.Has(ctx, "100")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryStoreEvictsOldestFirst(t *testing.T) {
	s := NewMemoryStore(WithMaxEntries(3))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, s.MarkProcessed(ctx, fmt.Sprint(i), time.Hour))
	}
	assert.Equal(t, 3, s.Len())

	require.NoError(t, s.MarkProcessed(ctx, "4", time.Hour))
	assert.Equal(t, 3, s.Len())

	// "1" was oldest and is gone; the rest survive.
	seen, _ := s.Has(ctx, "1")
	assert.False(t, seen)
	for _, id := range []string{"2", "3", "4"} {
		seen, _ := s.Has(ctx, id)
		assert.True(t, seen, "id %s should survive", id)
	}
}

func TestMemoryStoreRemarkRefreshesPosition(t *testing.T) {
	s := NewMemoryStore(WithMaxEntries(2))
	ctx := context.Background()

	require.NoError(t, s.MarkProcessed(ctx, "a", time.Hour))
	require.NoError(t, s.MarkProcessed(ctx, "b", time.Hour))

	// Re-marking "a" makes "b" the oldest.
	require.NoError(t, s.MarkProcessed(ctx, "a", time.Hour))
	require.NoError(t, s.MarkProcessed(ctx, "c", time.Hour))

	seen, _ := s.Has(ctx, "b")
	assert.False(t, seen)
	seen, _ = s.Has(ctx, "a")
	assert.True(t, seen)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("%d-%d", g, i)
				_ = s.MarkProcessed(ctx, id, time.Minute)
				_, _ = s.Has(ctx, id)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
	assert.Equal(t, 800, s.Len())
}

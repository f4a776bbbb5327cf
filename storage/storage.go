// Package storage provides processed-update tracking for deduplication.
// A Store answers one question: has this update already been handled?
// Entries expire after a per-entry TTL so storage stays bounded even for
// long-running bots.
package storage

import (
	"context"
	"time"
)

// Store tracks which update IDs have already been processed.
// Implementations must be safe for concurrent use.
type Store interface {
	// Has reports whether id was marked processed and has not expired.
	Has(ctx context.Context, id string) (bool, error)

	// MarkProcessed records id as processed. A zero ttl means the
	// implementation's default retention applies.
	MarkProcessed(ctx context.Context, id string, ttl time.Duration) error

	// Close releases any resources held by the store.
	Close() error
}

// DefaultTTL is the retention applied when MarkProcessed receives a zero TTL.
const DefaultTTL = 24 * time.Hour

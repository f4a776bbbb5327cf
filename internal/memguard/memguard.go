// Package memguard implements the advisory in-process memory ceiling.
// The check is a guardrail, not a reservation scheme: exceeding the
// ceiling refuses new work but never affects work already in flight.
package memguard

import "runtime"

// Guard checks heap usage against a configured ceiling.
type Guard struct {
	ceiling uint64
	// readStats is swappable for tests.
	readStats func() uint64
}

// New creates a Guard with the given ceiling in bytes.
// A zero ceiling disables the check.
func New(ceilingBytes uint64) *Guard {
	return &Guard{
		ceiling:   ceilingBytes,
		readStats: heapAlloc,
	}
}

// NewWithReader creates a Guard with a custom usage reader (for tests).
func NewWithReader(ceilingBytes uint64, read func() uint64) *Guard {
	return &Guard{ceiling: ceilingBytes, readStats: read}
}

// Allow reports whether new work may start under the ceiling.
func (g *Guard) Allow() bool {
	if g == nil || g.ceiling == 0 {
		return true
	}
	return g.readStats() < g.ceiling
}

// Usage returns current heap usage in bytes.
func (g *Guard) Usage() uint64 {
	if g == nil {
		return 0
	}
	return g.readStats()
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

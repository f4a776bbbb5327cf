// Package testutil provides test helpers shared across the module:
// a mock Bot API server with request capture, canned API replies,
// a fake sleeper for deterministic retry timing, and update fixtures.
package testutil

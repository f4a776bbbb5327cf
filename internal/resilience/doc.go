// Package resilience provides retry, rate limiting, and circuit breaker
// building blocks shared by the dispatch and ingest engines.
package resilience

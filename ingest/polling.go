package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/prilive-com/tgflow/dispatch"
	"github.com/prilive-com/tgflow/internal/resilience"
	"github.com/prilive-com/tgflow/tg"
)

// ErrPollingFatal is returned when the poll loop hits its consecutive
// failure ceiling and terminates. Restarting is the caller's decision.
var ErrPollingFatal = errors.New("tgflow: polling terminated after repeated fetch failures")

// PollState is the poll loop's current phase.
type PollState int32

const (
	StateIdle PollState = iota
	StateFetching
	StateDispatching
	StateBackoff
	StateStopped
)

func (s PollState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateDispatching:
		return "dispatching"
	case StateBackoff:
		return "backoff"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Poller runs the long-polling loop: fetch a batch with an offset one
// past the last seen update, dispatch each envelope, back off when idle
// or failing. The loop is driven by its context; cancel it to stop.
type Poller struct {
	config     Config
	client     Caller
	dispatcher *Dispatcher
	logger     *slog.Logger
	sleeper    Sleeper
	breaker    *gobreaker.CircuitBreaker[[]tg.Update]

	state    atomic.Int32
	offset   atomic.Int64
	failures atomic.Int64
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollerLogger sets a custom logger.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) { p.logger = logger }
}

// WithPollerSleeper sets a custom sleeper (for tests).
func WithPollerSleeper(s Sleeper) PollerOption {
	return func(p *Poller) { p.sleeper = s }
}

// NewPoller creates a Poller fetching through client and dispatching
// through dispatcher.
func NewPoller(cfg Config, client Caller, dispatcher *Dispatcher, opts ...PollerOption) *Poller {
	p := &Poller{
		config:     cfg,
		client:     client,
		dispatcher: dispatcher,
		logger:     slog.Default(),
		sleeper:    realSleeper{},
	}
	for _, opt := range opts {
		opt(p)
	}

	breakerCfg := resilience.DefaultBreakerConfig("tgflow-polling")
	breakerCfg.OnStateChange = func(name, from, to string) {
		p.logger.Info("circuit breaker state changed", "name", name, "from", from, "to", to)
	}
	p.breaker = resilience.NewBreaker[[]tg.Update](breakerCfg)

	return p
}

// State returns the loop's current phase.
func (p *Poller) State() PollState { return PollState(p.state.Load()) }

// Offset returns the next getUpdates offset.
func (p *Poller) Offset() int64 { return p.offset.Load() }

// ConsecutiveErrors returns the current run of fetch failures.
func (p *Poller) ConsecutiveErrors() int64 { return p.failures.Load() }

// IsHealthy reports whether the loop is running and under its failure
// ceiling.
func (p *Poller) IsHealthy() bool {
	return p.State() != StateStopped &&
		p.failures.Load() < int64(p.config.MaxFetchFailures)
}

// Run drives the loop until ctx is cancelled or the failure ceiling is
// hit. Always leaves the loop in StateStopped.
func (p *Poller) Run(ctx context.Context) error {
	defer p.state.Store(int32(StateStopped))

	p.logger.Info("polling started",
		"limit", p.config.PollLimit,
		"timeout", p.config.PollTimeout,
	)

	idleDelay := p.config.IdleFloor

	for {
		if err := ctx.Err(); err != nil {
			p.logger.Info("polling stopped", "offset", p.offset.Load())
			return err
		}

		p.state.Store(int32(StateFetching))
		updates, err := p.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("polling stopped", "offset", p.offset.Load())
				return ctx.Err()
			}

			n := p.failures.Add(1)
			if n >= int64(p.config.MaxFetchFailures) {
				p.logger.Error("polling failure ceiling reached, terminating",
					"consecutive_failures", n,
					"error", err,
				)
				return fmt.Errorf("%w: %w", ErrPollingFatal, err)
			}

			backoff := p.failureBackoff(n)
			p.logger.Warn("fetch failed, backing off",
				"consecutive_failures", n,
				"backoff", backoff,
				"error", err,
			)
			p.state.Store(int32(StateBackoff))
			if serr := p.sleeper.Sleep(ctx, backoff); serr != nil {
				return serr
			}
			continue
		}

		p.failures.Store(0)

		if len(updates) == 0 {
			p.state.Store(int32(StateIdle))
			if serr := p.sleeper.Sleep(ctx, idleDelay); serr != nil {
				return serr
			}
			idleDelay += p.config.IdleIncrement
			if idleDelay > p.config.IdleCap {
				idleDelay = p.config.IdleCap
			}
			continue
		}
		idleDelay = p.config.IdleFloor

		p.state.Store(int32(StateDispatching))
		for i := range updates {
			// Advance the offset before dispatch so a handler failure on
			// this envelope cannot cause redelivery on the next poll.
			p.offset.Store(int64(updates[i].UpdateID) + 1)
			_ = p.dispatcher.Dispatch(ctx, &updates[i])
		}
	}
}

func (p *Poller) fetch(ctx context.Context) ([]tg.Update, error) {
	return p.breaker.Execute(func() ([]tg.Update, error) {
		params := dispatch.Params{
			"offset":  p.offset.Load(),
			"limit":   p.config.PollLimit,
			"timeout": int(p.config.PollTimeout.Seconds()),
		}

		result, err := p.client.Call(ctx, "getUpdates", params)
		if err != nil {
			return nil, err
		}

		var updates []tg.Update
		if err := result.Decode(&updates); err != nil {
			return nil, fmt.Errorf("decode updates: %w", err)
		}
		return updates, nil
	})
}

// failureBackoff grows linearly with the failure run, capped.
func (p *Poller) failureBackoff(n int64) time.Duration {
	backoff := time.Duration(n) * p.config.FailureBackoff
	if backoff > p.config.FailureCap {
		backoff = p.config.FailureCap
	}
	return backoff
}

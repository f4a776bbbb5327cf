package ingest

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prilive-com/tgflow/storage"
	"github.com/prilive-com/tgflow/tg"
)

// Sleeper abstracts time-based waiting for testing.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Dispatcher routes one update at a time through dedup, spacing, and the
// handler precedence chain. Dispatch is serialized with a mutex, so
// storage access and spacing checks never race even when webhook
// requests arrive concurrently.
type Dispatcher struct {
	store     storage.Store
	client    Caller
	logger    *slog.Logger
	sleeper   Sleeper
	clock     func() time.Time
	minGap    time.Duration
	ttl       time.Duration
	onUpdate  UpdateHandler
	commands  *CommandRegistry
	callbacks *CallbackRegistry
	onEvent   HandlerFunc

	mu           sync.Mutex
	lastDispatch time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets a custom logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMinSpacing sets the minimum wall-clock gap between dispatches.
func WithMinSpacing(gap time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.minGap = gap }
}

// WithDedupTTL sets the retention of dedup records.
func WithDedupTTL(ttl time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.ttl = ttl }
}

// WithDispatcherSleeper sets a custom sleeper (for tests).
func WithDispatcherSleeper(s Sleeper) DispatcherOption {
	return func(d *Dispatcher) { d.sleeper = s }
}

// WithClock sets a custom time source (for tests).
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.clock = now }
}

// NewDispatcher creates a Dispatcher backed by the given store. The
// client handle is passed through to every handler invocation.
func NewDispatcher(store storage.Store, client Caller, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		client:    client,
		logger:    slog.Default(),
		sleeper:   realSleeper{},
		clock:     time.Now,
		ttl:       storage.DefaultTTL,
		commands:  NewCommandRegistry(),
		callbacks: NewCallbackRegistry(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnUpdate registers the generic callback invoked for every update.
func (d *Dispatcher) OnUpdate(fn UpdateHandler) { d.onUpdate = fn }

// OnCommand registers a command handler, e.g. OnCommand("/start", fn).
func (d *Dispatcher) OnCommand(command string, fn HandlerFunc) {
	d.commands.On(command, fn)
}

// OnCallback registers a handler for an exact callback data value.
func (d *Dispatcher) OnCallback(data string, fn HandlerFunc) {
	d.callbacks.On(data, fn)
}

// OnAnyCallback registers a catch-all callback-query handler.
func (d *Dispatcher) OnAnyCallback(fn HandlerFunc) {
	d.callbacks.OnAny(fn)
}

// OnEvent registers the catch-all message handler consulted when no
// command matched.
func (d *Dispatcher) OnEvent(fn HandlerFunc) { d.onEvent = fn }

// Dispatch processes one update: dedup check, spacing, mark processed,
// then the handler precedence chain. Handler failures are logged with
// the update identifier and never propagated.
func (d *Dispatcher) Dispatch(ctx context.Context, update *tg.Update) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := strconv.Itoa(update.UpdateID)

	seen, err := d.store.Has(ctx, id)
	if err != nil {
		// A broken store must not stall ingestion; treat as unseen.
		d.logger.Warn("dedup lookup failed", "update_id", id, "error", err)
	}
	if seen {
		d.logger.Debug("duplicate update skipped", "update_id", id)
		return nil
	}

	if d.minGap > 0 {
		elapsed := d.clock().Sub(d.lastDispatch)
		if elapsed < d.minGap {
			if err := d.sleeper.Sleep(ctx, d.minGap-elapsed); err != nil {
				return err
			}
		}
	}
	d.lastDispatch = d.clock()

	// Marking happens before handler execution so a handler failure does
	// not cause redelivery.
	if err := d.store.MarkProcessed(ctx, id, d.ttl); err != nil {
		d.logger.Warn("failed to mark update processed", "update_id", id, "error", err)
	}

	d.runHandlers(ctx, update, id)
	return nil
}

func (d *Dispatcher) runHandlers(ctx context.Context, update *tg.Update, id string) {
	if d.onUpdate != nil {
		d.invoke(id, "update", func() error {
			d.onUpdate(ctx, update, d.client)
			return nil
		})
	}

	handled := false

	switch {
	case update.CallbackQuery != nil:
		d.invoke(id, "callback", func() error {
			ok, err := d.callbacks.Handle(ctx, update, d.client)
			handled = handled || ok
			return err
		})

	case update.Message != nil:
		d.invoke(id, "command", func() error {
			ok, err := d.commands.Handle(ctx, update, d.client)
			handled = handled || ok
			return err
		})
		if !handled && d.onEvent != nil {
			d.invoke(id, "event", func() error {
				handled = true
				return d.onEvent(ctx, update, d.client)
			})
		}
	}

	if !handled && d.onUpdate == nil {
		d.logger.Warn("update not handled", "update_id", id)
	}
}

// invoke runs one handler with panic recovery. A panicking handler is
// logged and contained; it never takes down the loop or the webhook
// response.
func (d *Dispatcher) invoke(id, kind string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panicked", "update_id", id, "handler", kind, "panic", r)
		}
	}()

	if err := fn(); err != nil {
		d.logger.Error("handler failed", "update_id", id, "handler", kind, "error", err)
	}
}

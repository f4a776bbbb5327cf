package dispatch

import (
	"context"

	"github.com/prilive-com/tgflow/tg"
)

// Future is a handle to an asynchronously produced call result.
// Ordering between concurrently issued futures is not guaranteed.
type Future struct {
	done   chan struct{}
	result *tg.Result
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(result *tg.Result, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

// Wait blocks until the result is available or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) (*tg.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.result, f.err
	}
}

// Done returns a channel closed when the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome without blocking. It must only be called
// after Done() is closed.
func (f *Future) Result() (*tg.Result, error) {
	return f.result, f.err
}

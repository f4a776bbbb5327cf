package dispatch

import (
	"context"

	"github.com/prilive-com/tgflow/tg"
)

// Request is one outgoing call as seen by middleware: the API method name
// and its parameter mapping. Middleware may observe or transform both.
type Request struct {
	Method string
	Params Params
}

// CallFunc executes one attempt of a call and returns its raw outcome.
type CallFunc func(ctx context.Context, req *Request) (*tg.Result, error)

// Middleware wraps a CallFunc, delegating to next or short-circuiting.
type Middleware func(next CallFunc) CallFunc

// chain composes middlewares around the terminal transport handler.
// The terminal handler is wrapped by each middleware in reverse
// registration order, so the first-registered middleware sees the call
// first and the response last.
func chain(terminal CallFunc, middlewares []Middleware) CallFunc {
	h := terminal
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

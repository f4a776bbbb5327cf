package ingest

import (
	"context"
	"strings"
	"sync"

	"github.com/prilive-com/tgflow/dispatch"
	"github.com/prilive-com/tgflow/tg"
)

// Caller is the client handle passed to handlers so they can issue API
// calls in response to an update. *dispatch.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, method string, params dispatch.Params) (*tg.Result, error)
}

// UpdateHandler observes every update unconditionally.
type UpdateHandler func(ctx context.Context, update *tg.Update, client Caller)

// HandlerFunc handles one update. A returned error is logged with the
// update identifier and never aborts the loop or the webhook response.
type HandlerFunc func(ctx context.Context, update *tg.Update, client Caller) error

// CommandRegistry maps command strings like "/start" to handlers.
// Registration may happen at any time between dispatches.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]HandlerFunc
}

// NewCommandRegistry creates an empty command registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]HandlerFunc)}
}

// On registers a handler for the given command. The leading slash is
// added if missing.
func (r *CommandRegistry) On(command string, fn HandlerFunc) {
	if !strings.HasPrefix(command, "/") {
		command = "/" + command
	}
	r.mu.Lock()
	r.commands[command] = fn
	r.mu.Unlock()
}

// Len returns the number of registered commands.
func (r *CommandRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Handle dispatches the update's message text to a registered command
// handler. Returns whether the update was handled.
func (r *CommandRegistry) Handle(ctx context.Context, update *tg.Update, client Caller) (bool, error) {
	if update.Message == nil {
		return false, nil
	}

	command := parseCommand(update.Message.Text)
	if command == "" {
		return false, nil
	}

	r.mu.RLock()
	fn, ok := r.commands[command]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}

	return true, fn(ctx, update, client)
}

// parseCommand extracts the leading command token from a message text.
// A trailing @botname suffix is stripped so group mentions still match.
func parseCommand(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	command, _, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(command, "@")
	if command == "/" {
		return ""
	}
	return command
}

// CallbackRegistry maps callback-query data values to handlers.
type CallbackRegistry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	fallback HandlerFunc
}

// NewCallbackRegistry creates an empty callback registry.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{handlers: make(map[string]HandlerFunc)}
}

// On registers a handler for an exact callback data value.
func (r *CallbackRegistry) On(data string, fn HandlerFunc) {
	r.mu.Lock()
	r.handlers[data] = fn
	r.mu.Unlock()
}

// OnAny registers a fallback consulted when no exact data value matches.
func (r *CallbackRegistry) OnAny(fn HandlerFunc) {
	r.mu.Lock()
	r.fallback = fn
	r.mu.Unlock()
}

// Len returns the number of registered exact-match handlers.
func (r *CallbackRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Handle dispatches the update's callback query. Returns whether the
// update was handled.
func (r *CallbackRegistry) Handle(ctx context.Context, update *tg.Update, client Caller) (bool, error) {
	if update.CallbackQuery == nil {
		return false, nil
	}

	r.mu.RLock()
	fn, ok := r.handlers[update.CallbackQuery.Data]
	if !ok && r.fallback != nil {
		fn, ok = r.fallback, true
	}
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}

	return true, fn(ctx, update, client)
}

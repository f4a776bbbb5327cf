package tgflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prilive-com/tgflow/dispatch"
	"github.com/prilive-com/tgflow/ingest"
	"github.com/prilive-com/tgflow/storage"
	"github.com/prilive-com/tgflow/tg"
)

// Bot is the top-level facade joining the dispatch and ingest engines.
type Bot struct {
	client     *dispatch.Client
	store      storage.Store
	dispatcher *ingest.Dispatcher
	ingestCfg  ingest.Config
	logger     *slog.Logger

	dispatchOpts   []dispatch.Option
	dispatcherOpts []ingest.DispatcherOption

	mu     sync.Mutex
	poller *ingest.Poller
	cancel context.CancelFunc
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger used by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) { b.logger = logger }
}

// WithStore sets the dedup storage backend. Defaults to a bounded
// in-memory store.
func WithStore(s storage.Store) Option {
	return func(b *Bot) { b.store = s }
}

// WithIngestConfig sets the ingestion configuration.
func WithIngestConfig(cfg ingest.Config) Option {
	return func(b *Bot) { b.ingestCfg = cfg }
}

// WithDispatchOptions forwards options to the underlying dispatch client.
func WithDispatchOptions(opts ...dispatch.Option) Option {
	return func(b *Bot) { b.dispatchOpts = append(b.dispatchOpts, opts...) }
}

// WithDispatcherOptions forwards options to the update dispatcher.
func WithDispatcherOptions(opts ...ingest.DispatcherOption) Option {
	return func(b *Bot) { b.dispatcherOpts = append(b.dispatcherOpts, opts...) }
}

// New creates a Bot. The token is validated immediately; a malformed
// token fails construction before any network activity.
func New(token string, opts ...Option) (*Bot, error) {
	b := &Bot{
		ingestCfg: ingest.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.store == nil {
		b.store = storage.NewMemoryStore()
	}

	dispatchOpts := append([]dispatch.Option{dispatch.WithLogger(b.logger)}, b.dispatchOpts...)
	client, err := dispatch.New(token, dispatchOpts...)
	if err != nil {
		return nil, err
	}
	b.client = client

	dispatcherOpts := append([]ingest.DispatcherOption{
		ingest.WithDispatcherLogger(b.logger),
		ingest.WithMinSpacing(b.ingestCfg.MinSpacing),
		ingest.WithDedupTTL(b.ingestCfg.StoreTTL),
	}, b.dispatcherOpts...)
	b.dispatcher = ingest.NewDispatcher(b.store, client, dispatcherOpts...)

	return b, nil
}

// Client exposes the underlying dispatch client for direct calls.
func (b *Bot) Client() *dispatch.Client { return b.client }

// Call forwards to the dispatch engine.
func (b *Bot) Call(ctx context.Context, method string, params dispatch.Params) (*tg.Result, error) {
	return b.client.Call(ctx, method, params)
}

// CallAsync forwards to the dispatch engine. Requires the pooled
// transport.
func (b *Bot) CallAsync(ctx context.Context, method string, params dispatch.Params) (*dispatch.Future, error) {
	return b.client.CallAsync(ctx, method, params)
}

// OnUpdate registers the generic callback invoked for every update.
func (b *Bot) OnUpdate(fn ingest.UpdateHandler) { b.dispatcher.OnUpdate(fn) }

// OnCommand registers a command handler, e.g. OnCommand("/start", fn).
func (b *Bot) OnCommand(command string, fn ingest.HandlerFunc) {
	b.dispatcher.OnCommand(command, fn)
}

// OnCallback registers a handler for an exact callback data value.
func (b *Bot) OnCallback(data string, fn ingest.HandlerFunc) {
	b.dispatcher.OnCallback(data, fn)
}

// OnAnyCallback registers a catch-all callback-query handler.
func (b *Bot) OnAnyCallback(fn ingest.HandlerFunc) {
	b.dispatcher.OnAnyCallback(fn)
}

// OnEvent registers the catch-all message handler consulted when no
// command matched.
func (b *Bot) OnEvent(fn ingest.HandlerFunc) { b.dispatcher.OnEvent(fn) }

// Run blocks driving the long-polling loop until ctx is cancelled or
// polling fails fatally.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	if b.poller == nil {
		b.poller = ingest.NewPoller(b.ingestCfg, b.client, b.dispatcher,
			ingest.WithPollerLogger(b.logger))
	}
	poller := b.poller

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.mu.Unlock()

	return poller.Run(ctx)
}

// Stop cancels a running polling loop. Safe to call when not running.
func (b *Bot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

// IsPollingHealthy reports whether the polling loop is running and under
// its failure ceiling. False before Run has been called.
func (b *Bot) IsPollingHealthy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.poller != nil && b.poller.IsHealthy()
}

// WebhookHandler builds the webhook HTTP surface for serving behind the
// caller's HTTP server.
func (b *Bot) WebhookHandler() (http.Handler, error) {
	return ingest.NewWebhook(b.ingestCfg, b.dispatcher,
		ingest.WithWebhookLogger(b.logger))
}

// Close stops polling and releases client and storage resources.
func (b *Bot) Close() error {
	b.Stop()
	if err := b.client.Close(); err != nil {
		return err
	}
	return b.store.Close()
}

// GetMe returns the bot's own account.
func (b *Bot) GetMe(ctx context.Context) (*tg.User, error) {
	result, err := b.client.Call(ctx, "getMe", nil)
	if err != nil {
		return nil, err
	}
	var me tg.User
	if err := result.Decode(&me); err != nil {
		return nil, fmt.Errorf("decode getMe result: %w", err)
	}
	return &me, nil
}

// SendMessage sends a text message. Extra carries optional parameters
// like parse_mode or reply_markup and may be nil.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string, extra dispatch.Params) (*tg.Message, error) {
	params := dispatch.Params{
		"chat_id": chatID,
		"text":    text,
	}
	for k, v := range extra {
		params[k] = v
	}

	result, err := b.client.Call(ctx, "sendMessage", params)
	if err != nil {
		return nil, err
	}
	var msg tg.Message
	if err := result.Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode sendMessage result: %w", err)
	}
	return &msg, nil
}

// SendDocument uploads or references a document.
func (b *Bot) SendDocument(ctx context.Context, chatID int64, doc dispatch.InputFile, extra dispatch.Params) (*tg.Message, error) {
	params := dispatch.Params{
		"chat_id":  chatID,
		"document": doc,
	}
	for k, v := range extra {
		params[k] = v
	}

	result, err := b.client.Call(ctx, "sendDocument", params)
	if err != nil {
		return nil, err
	}
	var msg tg.Message
	if err := result.Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode sendDocument result: %w", err)
	}
	return &msg, nil
}

// AnswerCallbackQuery acknowledges a callback query, optionally with
// notification text.
func (b *Bot) AnswerCallbackQuery(ctx context.Context, queryID, text string) error {
	params := dispatch.Params{"callback_query_id": queryID}
	if text != "" {
		params["text"] = text
	}
	_, err := b.client.Call(ctx, "answerCallbackQuery", params)
	return err
}

// SetWebhook registers url as the update delivery endpoint. The secret
// from the ingest configuration, when set, is registered alongside so
// deliveries carry the matching header.
func (b *Bot) SetWebhook(ctx context.Context, url string) error {
	params := dispatch.Params{"url": url}
	if secret := b.ingestCfg.SecretToken.Value(); secret != "" {
		params["secret_token"] = secret
	}
	_, err := b.client.Call(ctx, "setWebhook", params)
	return err
}

// DeleteWebhook removes webhook delivery, optionally dropping queued
// updates.
func (b *Bot) DeleteWebhook(ctx context.Context, dropPending bool) error {
	_, err := b.client.Call(ctx, "deleteWebhook", dispatch.Params{
		"drop_pending_updates": dropPending,
	})
	return err
}

// GetWebhookInfo returns the current webhook delivery status.
func (b *Bot) GetWebhookInfo(ctx context.Context) (*tg.WebhookInfo, error) {
	result, err := b.client.Call(ctx, "getWebhookInfo", nil)
	if err != nil {
		return nil, err
	}
	var info tg.WebhookInfo
	if err := result.Decode(&info); err != nil {
		return nil, fmt.Errorf("decode getWebhookInfo result: %w", err)
	}
	return &info, nil
}

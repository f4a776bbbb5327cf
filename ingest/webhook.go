package ingest

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"

	"golang.org/x/time/rate"

	"github.com/prilive-com/tgflow/tg"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Webhook is the HTTP surface of webhook-mode ingestion. It validates
// method, source IP, and secret token before decoding exactly one update
// per request and handing it to the Dispatcher.
//
// Responses always carry a JSON body and correct status code, even on
// failure.
type Webhook struct {
	config     Config
	dispatcher *Dispatcher
	logger     *slog.Logger
	limiter    *rate.Limiter
	allowed    []netip.Prefix
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(logger *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = logger }
}

// NewWebhook creates the webhook handler. The configured CIDR list is
// parsed once here; a malformed CIDR is a construction error, not a
// per-request one.
func NewWebhook(cfg Config, dispatcher *Dispatcher, opts ...WebhookOption) (*Webhook, error) {
	w := &Webhook{
		config:     cfg,
		dispatcher: dispatcher,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if cfg.FloodRPS > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.FloodRPS), cfg.FloodBurst)
	}

	cidrs := cfg.AllowedCIDRs
	if len(cidrs) == 0 {
		cidrs = telegramCIDRs
	}
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, tg.NewValidationError("AllowedCIDRs", fmt.Sprintf("bad CIDR %q: %v", cidr, err))
		}
		w.allowed = append(w.allowed, prefix)
	}

	return w, nil
}

// ServeHTTP implements http.Handler.
func (w *Webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error("webhook processing panicked", "panic", rec)
			respond(rw, http.StatusInternalServerError, false, "internal error")
		}
	}()

	if r.Method != http.MethodPost {
		respond(rw, http.StatusMethodNotAllowed, false, "method not allowed")
		return
	}

	if w.limiter != nil && !w.limiter.Allow() {
		respond(rw, http.StatusTooManyRequests, false, "flood limit exceeded")
		return
	}

	if w.config.RestrictIPs && !w.sourceAllowed(r) {
		w.logger.Warn("webhook source rejected", "remote_addr", r.RemoteAddr)
		respond(rw, http.StatusForbidden, false, "source address not allowed")
		return
	}

	if !w.secretMatches(r) {
		w.logger.Warn("webhook secret token mismatch", "remote_addr", r.RemoteAddr)
		respond(rw, http.StatusForbidden, false, "invalid secret token")
		return
	}

	maxBody := w.config.MaxBodySize
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil || len(body) == 0 {
		respond(rw, http.StatusBadRequest, false, "empty or unreadable body")
		return
	}

	var update tg.Update
	if err := json.Unmarshal(body, &update); err != nil || update.UpdateID == 0 {
		respond(rw, http.StatusBadRequest, false, "malformed update")
		return
	}

	if err := w.dispatcher.Dispatch(r.Context(), &update); err != nil {
		w.logger.Error("webhook dispatch failed", "update_id", update.UpdateID, "error", err)
		respond(rw, http.StatusInternalServerError, false, "internal error")
		return
	}

	respond(rw, http.StatusOK, true, "")
}

// secretMatches compares the request's secret token header against the
// configured value in constant time. No configured secret means no check.
func (w *Webhook) secretMatches(r *http.Request) bool {
	want := w.config.SecretToken.Value()
	if want == "" {
		return true
	}
	got := r.Header.Get(secretTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func (w *Webhook) sourceAllowed(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range w.allowed {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func respond(rw http.ResponseWriter, status int, ok bool, description string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	payload := map[string]any{"ok": ok}
	if description != "" {
		payload["description"] = description
	}
	_ = json.NewEncoder(rw).Encode(payload)
}

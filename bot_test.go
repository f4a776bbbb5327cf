package tgflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/tgflow/dispatch"
	"github.com/prilive-com/tgflow/ingest"
	"github.com/prilive-com/tgflow/internal/testutil"
	"github.com/prilive-com/tgflow/tg"
)

func newTestBot(t *testing.T, server *testutil.MockAPIServer, opts ...Option) *Bot {
	t.Helper()

	base := []Option{
		WithDispatchOptions(
			dispatch.WithBaseURL(server.BaseURL()),
			dispatch.WithSleeper(&testutil.FakeSleeper{}),
		),
	}
	bot, err := New(testutil.TestToken, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { bot.Close() })
	return bot
}

func TestNewRejectsMalformedToken(t *testing.T) {
	_, err := New("not a token")
	require.Error(t, err)
	assert.ErrorIs(t, err, tg.ErrInvalidToken)
}

func TestGetMe(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.On("/bot"+testutil.TestToken+"/getMe", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyMe(w)
	})

	bot := newTestBot(t, server)

	me, err := bot.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "testbot", me.Username)
	assert.True(t, me.IsBot)
}

func TestSendMessage(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.On("/bot"+testutil.TestToken+"/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyMessage(w, 77)
	})

	bot := newTestBot(t, server)

	msg, err := bot.SendMessage(context.Background(), testutil.TestChatID, "hello", dispatch.Params{
		"parse_mode": "HTML",
	})
	require.NoError(t, err)
	assert.Equal(t, 77, msg.MessageID)

	body := string(server.LastCapture().Body)
	assert.Contains(t, body, "text=hello")
	assert.Contains(t, body, "parse_mode=HTML")
}

func TestSendDocumentGoesMultipart(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.On("/bot"+testutil.TestToken+"/sendDocument", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyMessage(w, 78)
	})

	bot := newTestBot(t, server)

	_, err := bot.SendDocument(context.Background(), testutil.TestChatID,
		dispatch.FromBytes([]byte("csv,data"), "export.csv"), nil)
	require.NoError(t, err)

	capture := server.LastCapture()
	assert.Contains(t, capture.ContentType, "multipart/form-data")
	assert.Contains(t, string(capture.Body), "export.csv")
}

func TestSetWebhookCarriesSecret(t *testing.T) {
	server := testutil.NewMockServer(t)

	cfg := ingest.DefaultConfig()
	cfg.SecretToken = "hook-secret"
	bot := newTestBot(t, server, WithIngestConfig(cfg))

	require.NoError(t, bot.SetWebhook(context.Background(), "https://example.org/hook"))

	body := string(server.LastCapture().Body)
	assert.Contains(t, body, "secret_token=hook-secret")
	assert.Contains(t, strings.ReplaceAll(body, "%2F", "/"), "url=https")
}

func TestWebhookHandlerEndToEnd(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.On("/bot"+testutil.TestToken+"/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyMessage(w, 1)
	})

	bot := newTestBot(t, server)

	replied := make(chan struct{}, 1)
	bot.OnCommand("/start", func(ctx context.Context, u *tg.Update, c ingest.Caller) error {
		_, err := c.Call(ctx, "sendMessage", dispatch.Params{
			"chat_id": u.Message.Chat.ID,
			"text":    "welcome",
		})
		replied <- struct{}{}
		return err
	})

	handler, err := bot.WebhookHandler()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"update_id":42,"message":{"chat":{"id":7},"text":"/start"}}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	select {
	case <-replied:
	default:
		t.Fatal("command handler did not run")
	}
	assert.Contains(t, string(server.LastCapture().Body), "text=welcome")
}

func TestRunPollsAndStops(t *testing.T) {
	server := testutil.NewMockServer(t)
	server.On("/bot"+testutil.TestToken+"/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		testutil.ReplyUpdates(w)
	})

	cfg := ingest.DefaultConfig()
	cfg.IdleFloor = time.Millisecond
	cfg.IdleCap = time.Millisecond
	bot := newTestBot(t, server, WithIngestConfig(cfg))

	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { done <- bot.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("polling did not stop")
	}
	assert.False(t, bot.IsPollingHealthy())
}

// tgflow-echobot is a small end-to-end exercise of the library: it
// echoes every text message back and answers /start, running in either
// polling or webhook mode.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/prilive-com/tgflow"
	"github.com/prilive-com/tgflow/dispatch"
	"github.com/prilive-com/tgflow/ingest"
	"github.com/prilive-com/tgflow/storage"
	"github.com/prilive-com/tgflow/tg"
)

type appConfig struct {
	BotToken      string        `env:"TGFLOW_BOT_TOKEN" env-required:"true"`
	Mode          string        `env:"TGFLOW_INGEST_MODE" env-default:"polling"`
	ListenAddr    string        `env:"WEBHOOK_LISTEN_ADDR" env-default:":8443"`
	WebhookURL    string        `env:"WEBHOOK_URL" env-default:""`
	WebhookSecret string        `env:"WEBHOOK_SECRET_TOKEN" env-default:""`
	PostgresDSN   string        `env:"POSTGRES_DSN" env-default:""`
	MinSpacing    time.Duration `env:"MIN_UPDATE_SPACING" env-default:"0s"`
	Debug         bool          `env:"DEBUG" env-default:"false"`
}

func main() {
	var cfg appConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("failed to read configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("echobot exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg appConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	ingestCfg := ingest.DefaultConfig()
	ingestCfg.MinSpacing = cfg.MinSpacing
	ingestCfg.SecretToken = tg.SecretToken(cfg.WebhookSecret)

	bot, err := tgflow.New(cfg.BotToken,
		tgflow.WithLogger(logger),
		tgflow.WithStore(store),
		tgflow.WithIngestConfig(ingestCfg),
	)
	if err != nil {
		return err
	}
	defer bot.Close()

	me, err := bot.GetMe(ctx)
	if err != nil {
		return err
	}
	logger.Info("authorized", "username", me.Username, "id", me.ID)

	registerHandlers(bot)

	if cfg.Mode == "webhook" {
		return runWebhook(ctx, cfg, bot, logger)
	}
	return runPolling(ctx, bot, logger)
}

func buildStore(cfg appConfig) (storage.Store, error) {
	if cfg.PostgresDSN != "" {
		return storage.NewPostgresStore(cfg.PostgresDSN, time.Hour)
	}
	return storage.NewMemoryStore(), nil
}

func registerHandlers(bot *tgflow.Bot) {
	bot.OnCommand("/start", func(ctx context.Context, u *tg.Update, c ingest.Caller) error {
		_, err := c.Call(ctx, "sendMessage", dispatch.Params{
			"chat_id": u.Message.Chat.ID,
			"text":    "Send me any text and I will echo it back.",
		})
		return err
	})

	bot.OnEvent(func(ctx context.Context, u *tg.Update, c ingest.Caller) error {
		if u.Message.Text == "" {
			return nil
		}
		_, err := c.Call(ctx, "sendMessage", dispatch.Params{
			"chat_id": u.Message.Chat.ID,
			"text":    u.Message.Text,
		})
		return err
	})
}

func runPolling(ctx context.Context, bot *tgflow.Bot, logger *slog.Logger) error {
	// Leftover webhook registration would starve getUpdates.
	if err := bot.DeleteWebhook(ctx, false); err != nil {
		logger.Warn("failed to delete webhook before polling", "error", err)
	}

	err := bot.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runWebhook(ctx context.Context, cfg appConfig, bot *tgflow.Bot, logger *slog.Logger) error {
	handler, err := bot.WebhookHandler()
	if err != nil {
		return err
	}

	if cfg.WebhookURL != "" {
		if err := bot.SetWebhook(ctx, cfg.WebhookURL); err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/webhook", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhook server listening", "addr", cfg.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

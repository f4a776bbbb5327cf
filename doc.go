// Package tgflow is a resilient client for the Telegram Bot API.
//
// It has two halves. The dispatch engine sends API calls with validation,
// a middleware chain, bounded retries, rate limiting, and a circuit
// breaker. The ingest engine receives updates by webhook or long polling,
// deduplicates them against pluggable storage, and routes each one to
// registered handlers.
//
// Bot ties the halves together behind one facade:
//
//	bot, err := tgflow.New(os.Getenv("TGFLOW_BOT_TOKEN"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer bot.Close()
//
//	bot.OnCommand("/start", func(ctx context.Context, u *tg.Update, c ingest.Caller) error {
//		_, err := c.Call(ctx, "sendMessage", dispatch.Params{
//			"chat_id": u.Message.Chat.ID,
//			"text":    "hello",
//		})
//		return err
//	})
//
//	if err := bot.Run(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// Lower-level use goes straight to the subpackages: dispatch for the
// call engine, ingest for webhook/polling ingestion, storage for dedup
// backends, tg for wire types and the error taxonomy.
package tgflow

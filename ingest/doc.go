// Package ingest turns inbound webhook requests or a long-polling loop
// into a stream of normalized updates and dispatches each one to at most
// one of several handler kinds in a fixed precedence order.
//
// Two modes, fixed at construction:
//
//   - Webhook: an http.Handler validating method, source IP range, and
//     secret token before decoding one update per request.
//   - Polling: an unbounded fetch loop with idle backoff and a fatal
//     ceiling on consecutive fetch failures.
//
// Both paths feed the same Dispatcher, which deduplicates updates against
// a pluggable storage backend and enforces minimum inter-update spacing.
//
// Example (webhook):
//
//	store := storage.NewMemoryStore()
//	disp := ingest.NewDispatcher(store, client)
//	disp.OnCommand("/start", startHandler)
//
//	hook, err := ingest.NewWebhook(ingest.DefaultConfig(), disp)
//	if err != nil {
//		log.Fatal(err)
//	}
//	http.ListenAndServe(":8443", hook)
package ingest

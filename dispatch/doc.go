// Package dispatch implements the request dispatch engine: the single
// entry point every API call funnels through.
//
// A call is validated, its parameters normalized to form or multipart
// encoding, run through the middleware chain, sent over one of two
// transport backends, retried with a configurable backoff policy, and
// decoded into a tg.Result. Rate-limit responses (429 with retry_after)
// get one extra wait-and-resubmit cycle outside the ordinary retry
// budget.
//
//	client, err := dispatch.New(token)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := client.Call(ctx, "getMe", nil)
//
// Async calls require the pooled transport:
//
//	fut, err := client.CallAsync(ctx, "sendMessage", dispatch.Params{
//	    "chat_id": 42,
//	    "text":    "hello",
//	})
//	res, err := fut.Wait(ctx)
package dispatch

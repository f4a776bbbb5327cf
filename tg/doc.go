// Package tg contains the shared wire types for the Telegram Bot API:
// the Update envelope and its payload variants, the API result envelope,
// the error taxonomy, and the SecretToken wrapper.
//
// All types here are plain data. Behavior lives in the dispatch and
// ingest packages.
package tg

package testutil

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Envelope is the standard Bot API response format.
type Envelope struct {
	OK          bool        `json:"ok"`
	Result      any         `json:"result,omitempty"`
	ErrorCode   int         `json:"error_code,omitempty"`
	Description string      `json:"description,omitempty"`
	Parameters  *Parameters `json:"parameters,omitempty"`
}

// Parameters contains optional error parameters (e.g., retry_after).
type Parameters struct {
	RetryAfter      int   `json:"retry_after,omitempty"`
	MigrateToChatID int64 `json:"migrate_to_chat_id,omitempty"`
}

// ReplyOK writes a successful API response.
func ReplyOK(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Envelope{
		OK:     true,
		Result: result,
	})
}

// ReplyError writes an API error response.
func ReplyError(w http.ResponseWriter, code int, description string, params *Parameters) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Envelope{
		OK:          false,
		ErrorCode:   code,
		Description: description,
		Parameters:  params,
	})
}

// ReplyRateLimit writes a 429 rate limit response with retry_after in both JSON and HTTP header.
func ReplyRateLimit(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	ReplyError(w, 429, "Too Many Requests: retry after "+strconv.Itoa(retryAfter), &Parameters{
		RetryAfter: retryAfter,
	})
}

// ReplyServerError writes a 5xx server error response.
func ReplyServerError(w http.ResponseWriter, code int, description string) {
	ReplyError(w, code, description, nil)
}

// ReplyBadRequest writes a 400 bad request error.
func ReplyBadRequest(w http.ResponseWriter, description string) {
	ReplyError(w, 400, "Bad Request: "+description, nil)
}

// ReplyMessage writes a successful message response.
func ReplyMessage(w http.ResponseWriter, messageID int) {
	ReplyOK(w, map[string]any{
		"message_id": messageID,
		"date":       1234567890,
		"chat": map[string]any{
			"id":   TestChatID,
			"type": "private",
		},
		"text": "Test message",
	})
}

// ReplyMe writes a successful getMe response.
func ReplyMe(w http.ResponseWriter) {
	ReplyOK(w, map[string]any{
		"id":         1,
		"is_bot":     true,
		"first_name": "testbot",
		"username":   "testbot",
	})
}

// ReplyUpdates writes a successful getUpdates response.
func ReplyUpdates(w http.ResponseWriter, updates ...any) {
	if updates == nil {
		updates = []any{}
	}
	ReplyOK(w, updates)
}

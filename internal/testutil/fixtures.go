package testutil

// Shared test fixtures.
const (
	// TestToken is a syntactically valid bot token for tests.
	TestToken = "123456:ABC-DEF1234ghIkl"

	// TestChatID is the chat used by canned message replies.
	TestChatID = int64(42)
)

// MessageUpdate returns a getUpdates result element carrying a text message.
func MessageUpdate(updateID int, text string) map[string]any {
	return map[string]any{
		"update_id": updateID,
		"message": map[string]any{
			"message_id": updateID * 10,
			"date":       1234567890,
			"chat": map[string]any{
				"id":   TestChatID,
				"type": "private",
			},
			"from": map[string]any{
				"id":         7,
				"is_bot":     false,
				"first_name": "tester",
			},
			"text": text,
		},
	}
}

// CallbackUpdate returns a getUpdates result element carrying a callback query.
func CallbackUpdate(updateID int, data string) map[string]any {
	return map[string]any{
		"update_id": updateID,
		"callback_query": map[string]any{
			"id":            "cbq",
			"chat_instance": "ci",
			"data":          data,
			"from": map[string]any{
				"id":         7,
				"is_bot":     false,
				"first_name": "tester",
			},
		},
	}
}

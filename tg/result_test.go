package tg

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultDecodeSuccess(t *testing.T) {
	var result Result
	require.NoError(t, json.Unmarshal([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"bot"}}`), &result))
	require.True(t, result.OK)

	var me User
	require.NoError(t, result.Decode(&me))
	assert.Equal(t, int64(1), me.ID)
	assert.True(t, me.IsBot)
}

func TestResultDecodeRefusesFailedResult(t *testing.T) {
	result := Result{OK: false, ErrorCode: 400, Description: "Bad Request"}

	err := result.Decode(&User{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad Request")
}

func TestResultDecodeNilOutIsNoop(t *testing.T) {
	result := Result{OK: true, Result: json.RawMessage(`true`)}
	assert.NoError(t, result.Decode(nil))
}

func TestResultRetryAfter(t *testing.T) {
	var result Result
	require.NoError(t, json.Unmarshal([]byte(`{"ok":false,"error_code":429,"description":"slow down","parameters":{"retry_after":12}}`), &result))
	assert.Equal(t, 12, result.RetryAfter())

	assert.Zero(t, (&Result{OK: false}).RetryAfter())
}

func TestUpdateVariantsDecode(t *testing.T) {
	raw := `{
		"update_id": 42,
		"callback_query": {
			"id": "q1",
			"chat_instance": "ci",
			"data": "confirm",
			"from": {"id": 7, "is_bot": false, "first_name": "tester"}
		}
	}`

	var update Update
	require.NoError(t, json.Unmarshal([]byte(raw), &update))
	assert.Equal(t, 42, update.UpdateID)
	require.NotNil(t, update.CallbackQuery)
	assert.Equal(t, "confirm", update.CallbackQuery.Data)
	assert.Nil(t, update.Message)
}

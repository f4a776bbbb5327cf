package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/tgflow/tg"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/start", "/start"},
		{"/start now", "/start"},
		{"/start@mybot", "/start"},
		{"/start@mybot now", "/start"},
		{"hello", ""},
		{"", ""},
		{"/", ""},
		{"not /start", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseCommand(tt.text), "text %q", tt.text)
	}
}

func TestCommandRegistryHandle(t *testing.T) {
	reg := NewCommandRegistry()

	invoked := 0
	reg.On("start", func(ctx context.Context, u *tg.Update, c Caller) error {
		invoked++
		return nil
	})
	require.Equal(t, 1, reg.Len())

	update := &tg.Update{
		UpdateID: 1,
		Message:  &tg.Message{Text: "/start now"},
	}

	handled, err := reg.Handle(context.Background(), update, nil)
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, 1, invoked)

	// Unregistered command is not handled.
	update.Message.Text = "/stop"
	handled, err = reg.Handle(context.Background(), update, nil)
	require.NoError(t, err)
	assert.False(t, handled)

	// Plain text is not a command.
	update.Message.Text = "hello"
	handled, _ = reg.Handle(context.Background(), update, nil)
	assert.False(t, handled)

	// No message payload at all.
	handled, _ = reg.Handle(context.Background(), &tg.Update{UpdateID: 2}, nil)
	assert.False(t, handled)
}

func TestCallbackRegistryExactAndFallback(t *testing.T) {
	reg := NewCallbackRegistry()

	var got []string
	reg.On("yes", func(ctx context.Context, u *tg.Update, c Caller) error {
		got = append(got, "exact")
		return nil
	})
	reg.OnAny(func(ctx context.Context, u *tg.Update, c Caller) error {
		got = append(got, "fallback")
		return nil
	})

	update := &tg.Update{
		UpdateID:      1,
		CallbackQuery: &tg.CallbackQuery{Data: "yes"},
	}
	handled, err := reg.Handle(context.Background(), update, nil)
	require.NoError(t, err)
	assert.True(t, handled)

	update.CallbackQuery.Data = "other"
	handled, err = reg.Handle(context.Background(), update, nil)
	require.NoError(t, err)
	assert.True(t, handled)

	assert.Equal(t, []string{"exact", "fallback"}, got)
}

func TestCallbackRegistryIgnoresNonCallbackUpdates(t *testing.T) {
	reg := NewCallbackRegistry()
	reg.OnAny(func(ctx context.Context, u *tg.Update, c Caller) error { return nil })

	handled, err := reg.Handle(context.Background(), &tg.Update{UpdateID: 1}, nil)
	require.NoError(t, err)
	assert.False(t, handled)
}

package scrub

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/tgflow/tg"
)

func TestTokenFromErrorRedacts(t *testing.T) {
	token := tg.SecretToken("123456:supersecret")
	err := fmt.Errorf(`Post "https://api.telegram.org/bot123456:supersecret/getMe": connection refused`)

	scrubbed := TokenFromError(err, token)
	assert.NotContains(t, scrubbed.Error(), "supersecret")
	assert.Contains(t, scrubbed.Error(), "[REDACTED]")
}

func TestTokenFromErrorPreservesChain(t *testing.T) {
	token := tg.SecretToken("123456:supersecret")
	sentinel := errors.New("refused")
	err := fmt.Errorf("Post bot123456:supersecret: %w", sentinel)

	scrubbed := TokenFromError(err, token)
	assert.ErrorIs(t, scrubbed, sentinel)
}

func TestTokenFromErrorPassthrough(t *testing.T) {
	token := tg.SecretToken("123456:supersecret")

	assert.Nil(t, TokenFromError(nil, token))

	clean := errors.New("no token here")
	assert.Same(t, clean, TokenFromError(clean, token))

	require.NotNil(t, TokenFromError(clean, ""))
	assert.Same(t, clean, TokenFromError(clean, ""))
}

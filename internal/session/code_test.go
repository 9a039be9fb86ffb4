package session

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskForCodeAcceptsValidCode(t *testing.T) {
	var out bytes.Buffer
	code, err := AskForCode(context.Background(), strings.NewReader("7-crossover-clockwork\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "7-crossover-clockwork", code)
}

func TestAskForCodeCompletesUniquePrefix(t *testing.T) {
	var out bytes.Buffer
	code, err := AskForCode(context.Background(), strings.NewReader("7-crossover-clock\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "7-crossover-clockwork", code)
	assert.Contains(t, out.String(), "Using: 7-crossover-clockwork")
}

func TestAskForCodeRepromptsOnInvalidEntry(t *testing.T) {
	var out bytes.Buffer
	code, err := AskForCode(context.Background(), strings.NewReader("nodashes\n7-crossover-clockwork\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "7-crossover-clockwork", code)
	assert.Contains(t, out.String(), "Invalid code")
}

func TestAskForCodeCancelledWhileBlocked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocked, _ := newBlockedReader()
	_, err := AskForCode(ctx, blocked, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAskForCodeInputClosed(t *testing.T) {
	_, err := AskForCode(context.Background(), strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}

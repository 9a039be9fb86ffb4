package wordlist

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseCodeShape(t *testing.T) {
	code, err := ChooseCode(DefaultWords)
	require.NoError(t, err)

	parts := strings.Split(code, "-")
	require.Len(t, parts, 1+DefaultWords)

	channel, err := strconv.Atoi(parts[0])
	require.NoError(t, err)
	assert.GreaterOrEqual(t, channel, 1)
	assert.LessOrEqual(t, channel, MaxChannel)

	assert.Contains(t, oddWords, parts[1])
	assert.Contains(t, evenWords, parts[2])
	assert.NoError(t, Validate(code))
}

func TestChooseWordsAlternatesTables(t *testing.T) {
	words, err := ChooseWords(4)
	require.NoError(t, err)

	parts := strings.Split(words, "-")
	require.Len(t, parts, 4)
	assert.Contains(t, oddWords, parts[0])
	assert.Contains(t, evenWords, parts[1])
	assert.Contains(t, oddWords, parts[2])
	assert.Contains(t, evenWords, parts[3])
}

func TestChooseWordsRejectsNonPositiveCount(t *testing.T) {
	_, err := ChooseWords(0)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("7-crossover-clockwork"))
	assert.NoError(t, Validate("123-guitarist"))
	assert.NoError(t, Validate("4-purple-sausages"), "words outside the tables still redeem")

	assert.Error(t, Validate("crossover-clockwork"), "channel missing")
	assert.Error(t, Validate("7"), "words missing")
	assert.Error(t, Validate("7--clockwork"), "empty word")
	assert.Error(t, Validate("7-Crossover"), "uppercase")
	assert.Error(t, Validate("7-cross over"), "whitespace")
}

func TestComplete(t *testing.T) {
	got := Complete("7-cross")
	assert.Contains(t, got, "7-crossover")
	for _, code := range got {
		assert.True(t, strings.HasPrefix(code, "7-cross"))
	}

	// Second word position completes from the even table.
	got = Complete("7-crossover-clock")
	assert.Contains(t, got, "7-crossover-clockwork")

	assert.Nil(t, Complete("7"), "no channel separator yet")
	assert.Empty(t, Complete("7-zzzznope"))
}

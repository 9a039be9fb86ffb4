// Package wordlist generates and validates the human-transcribable codes
// used to rendezvous two peers. A code looks like "7-crossover-clockwork":
// a numeric channel followed by words drawn alternately from the PGP odd
// and even word lists.
package wordlist

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// DefaultWords is the number of words in a generated code.
const DefaultWords = 2

// MaxChannel bounds the numeric channel prefix of generated codes.
const MaxChannel = 999

// ChooseWords returns n random words joined by dashes, alternating
// between the odd and even word tables starting with the odd one.
func ChooseWords(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("word count must be positive, got %d", n)
	}

	tables := [][]string{oddWords, evenWords}
	parts := make([]string, 0, n)
	for i := range n {
		table := tables[i%len(tables)]
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(table))))
		if err != nil {
			return "", fmt.Errorf("failed to pick random word: %w", err)
		}
		parts = append(parts, table[idx.Int64()])
	}
	return strings.Join(parts, "-"), nil
}

// ChooseCode returns a full code with a random channel prefix, e.g.
// "7-crossover-clockwork".
func ChooseCode(numWords int) (string, error) {
	channel, err := rand.Int(rand.Reader, big.NewInt(MaxChannel))
	if err != nil {
		return "", fmt.Errorf("failed to pick channel: %w", err)
	}

	words, err := ChooseWords(numWords)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s", channel.Int64()+1, words), nil
}

// Validate reports whether a code has the expected shape: a numeric
// channel followed by at least one dash-separated lowercase word. Words
// outside the PGP tables are accepted so codes from other tools still
// redeem.
func Validate(code string) error {
	parts := strings.Split(code, "-")
	if len(parts) < 2 {
		return fmt.Errorf("code %q must be <channel>-<word>[-<word>...]", code)
	}

	if _, err := strconv.Atoi(parts[0]); err != nil {
		return fmt.Errorf("code %q must start with a numeric channel", code)
	}

	for _, word := range parts[1:] {
		if word == "" {
			return fmt.Errorf("code %q contains an empty word", code)
		}
		for _, r := range word {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
				return fmt.Errorf("code %q contains invalid character %q", code, r)
			}
		}
	}
	return nil
}

// Complete returns all codes the given prefix could expand to, using the
// word table that matches the position of the partial word. The prefix
// must already contain the channel ("7-cross" completes to
// "7-crossover").
func Complete(prefix string) []string {
	dashes := strings.Count(prefix, "-")
	if dashes == 0 {
		return nil
	}

	tables := [][]string{oddWords, evenWords}
	table := tables[(dashes-1)%len(tables)]

	head, partial := prefix, ""
	if i := strings.LastIndex(prefix, "-"); i >= 0 {
		head, partial = prefix[:i], prefix[i+1:]
	}

	var out []string
	for _, word := range table {
		if strings.HasPrefix(word, partial) {
			out = append(out, head+"-"+word)
		}
	}
	return out
}

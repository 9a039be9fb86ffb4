package session

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"codedrop/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var offer = engine.PeerMetadata{Name: "a.txt", Size: 12, Kind: engine.KindFile}

func TestConfirmAccept(t *testing.T) {
	for _, answer := range []string{"y\n", "yes\n", "Y\n"} {
		var out bytes.Buffer
		g := NewConfirmationGate(strings.NewReader(answer), &out, false)

		decision, err := g.Confirm(context.Background(), offer)
		require.NoError(t, err)
		assert.Equal(t, Accept, decision)
		assert.Contains(t, out.String(), "a.txt")
	}
}

func TestConfirmRejectIsDefault(t *testing.T) {
	for _, answer := range []string{"n\n", "no\n", "\n", "whatever\n"} {
		var out bytes.Buffer
		g := NewConfirmationGate(strings.NewReader(answer), &out, false)

		decision, err := g.Confirm(context.Background(), offer)
		require.NoError(t, err)
		assert.Equal(t, Reject, decision)
	}
}

func TestConfirmAutoAccept(t *testing.T) {
	// No input at all: auto-accept never touches the reader.
	g := NewConfirmationGate(strings.NewReader(""), &bytes.Buffer{}, true)

	decision, err := g.Confirm(context.Background(), offer)
	require.NoError(t, err)
	assert.Equal(t, Accept, decision)
}

func TestConfirmInterruptResolvesAsReject(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never produces a line; the cancelled context must
	// unblock the gate anyway.
	blocked, _ := newBlockedReader()
	g := NewConfirmationGate(blocked, &bytes.Buffer{}, false)

	decision, err := g.Confirm(ctx, offer)
	assert.Equal(t, Reject, decision)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfirmConsumedOnce(t *testing.T) {
	g := NewConfirmationGate(strings.NewReader("y\ny\n"), &bytes.Buffer{}, false)

	_, err := g.Confirm(context.Background(), offer)
	require.NoError(t, err)

	decision, err := g.Confirm(context.Background(), offer)
	assert.Equal(t, Reject, decision)
	assert.Error(t, err, "the gate produces exactly one decision")
}

// newBlockedReader returns a reader whose Read never returns until the
// returned release func is called.
func newBlockedReader() (*blockedReader, func()) {
	ch := make(chan struct{})
	return &blockedReader{release: ch}, func() { close(ch) }
}

type blockedReader struct {
	release chan struct{}
}

func (r *blockedReader) Read(p []byte) (int, error) {
	<-r.release
	return 0, nil
}

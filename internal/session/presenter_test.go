package session

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingChannel counts presenter interactions for test assertions.
type recordingChannel struct {
	name        string
	failPresent bool
	presented   []string
	dismissed   int
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Present(code string) error {
	if c.failPresent {
		return fmt.Errorf("channel unavailable")
	}
	c.presented = append(c.presented, code)
	return nil
}

func (c *recordingChannel) Dismiss() error {
	c.dismissed++
	return nil
}

func TestTextChannelWritesCode(t *testing.T) {
	var out bytes.Buffer
	ch := &TextChannel{Out: &out}

	assert.NoError(t, ch.Present("7-crossover-clockwork"))
	assert.Contains(t, out.String(), "7-crossover-clockwork")
	assert.NoError(t, ch.Dismiss())
}

func TestPresenterDegradesOnChannelFailure(t *testing.T) {
	healthy := &recordingChannel{name: "text"}
	broken := &recordingChannel{name: "clipboard", failPresent: true}
	p := NewPresenter(broken, healthy)

	// A failing channel never aborts presentation on the others.
	p.Present("7-crossover-clockwork")
	assert.Equal(t, []string{"7-crossover-clockwork"}, healthy.presented)
	assert.Empty(t, broken.presented)

	// Only channels that actually presented get dismissed.
	p.Dismiss()
	assert.Equal(t, 1, healthy.dismissed)
	assert.Zero(t, broken.dismissed)
}

func TestPresenterDismissExactlyOnce(t *testing.T) {
	ch := &recordingChannel{name: "text"}
	p := NewPresenter(ch)

	p.Present("4-tunnel-molasses")
	p.Dismiss()
	p.Dismiss()
	p.Dismiss()

	assert.Equal(t, 1, ch.dismissed, "dismiss must run exactly once")
}

func TestQRChannelErasesItsBlock(t *testing.T) {
	var out bytes.Buffer
	ch := &QRChannel{Out: &out}

	assert.NoError(t, ch.Present("4-tunnel-molasses"))
	assert.Greater(t, ch.lines, 0)

	before := out.Len()
	assert.NoError(t, ch.Dismiss())
	assert.Greater(t, out.Len(), before, "dismiss writes the erase sequence")
	assert.Zero(t, ch.lines)
}

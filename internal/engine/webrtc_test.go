package engine

import (
	"testing"
	"time"

	"codedrop/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalEventSurvivesQueuedSamples(t *testing.T) {
	e := NewWebRTCEngine(config.NewDefaultConfig(), nil, "")

	// Fill the stream buffer with samples before the outcome lands, the
	// way a briefly lagging consumer would see it.
	events := make(chan Event, 16)
	for i := range 16 {
		s := ProgressSample{Bytes: int64(i), Total: 16}
		events <- Event{Sample: &s}
	}

	delivered := make(chan struct{})
	go func() {
		e.finish(events, Event{Outcome: OutcomeSuccess})
		close(delivered)
	}()

	var terminal *Event
	for ev := range events {
		if ev.Terminal {
			ev := ev
			terminal = &ev
		}
	}

	require.NotNil(t, terminal, "outcome must reach a consumer that drains the stream")
	assert.Equal(t, OutcomeSuccess, terminal.Outcome)

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("finish did not return after delivery")
	}
}

func TestFinishReleasedByClose(t *testing.T) {
	e := NewWebRTCEngine(config.NewDefaultConfig(), nil, "")

	// Nobody ever reads: the consumer gave up. Closing the engine must
	// release the pending terminal send.
	events := make(chan Event)
	finished := make(chan struct{})
	go func() {
		e.finish(events, Event{Outcome: OutcomeCancelled})
		close(finished)
	}()

	require.NoError(t, e.Close())

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("finish still blocked after Close")
	}
}

func TestDeliverReleasedByClose(t *testing.T) {
	e := NewWebRTCEngine(config.NewDefaultConfig(), nil, "")

	// Saturate the fan-out buffers as if the transfer loop already
	// returned and stopped draining.
	for range cap(e.ctrl) {
		e.ctrl <- frame{Type: frameDone}
	}
	for range cap(e.data) {
		e.data <- []byte{0}
	}

	released := make(chan struct{})
	go func() {
		e.deliverCtrl(frame{Type: frameDone})
		e.deliverData([]byte{0})
		close(released)
	}()

	require.NoError(t, e.Close())

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("message delivery still blocked after Close")
	}
}

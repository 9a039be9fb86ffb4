package session

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelTokenIdempotent(t *testing.T) {
	token := NewCancelToken()
	assert.False(t, token.Cancelled())

	token.Cancel()
	assert.True(t, token.Cancelled())

	// Signaling twice is a no-op, not a panic.
	token.Cancel()
	assert.True(t, token.Cancelled())

	select {
	case <-token.Done():
	default:
		t.Fatal("Done channel should be closed after Cancel")
	}
}

func TestCancelTokenBind(t *testing.T) {
	token := NewCancelToken()
	ctx, unbind := token.Bind(context.Background())
	defer unbind()

	require.NoError(t, ctx.Err())

	token.Cancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("bound context not cancelled after token fired")
	}
}

func TestMonitorFirstInterruptCancels(t *testing.T) {
	sigCh := make(chan os.Signal, 2)
	forced := make(chan struct{})
	m := newTestMonitor(sigCh, func() { close(forced) })

	token := m.Start()
	sigCh <- syscall.SIGINT

	select {
	case <-token.Done():
	case <-time.After(time.Second):
		t.Fatal("first interrupt did not cancel the token")
	}

	select {
	case <-forced:
		t.Fatal("first interrupt must not force termination")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitorSecondInterruptForces(t *testing.T) {
	sigCh := make(chan os.Signal, 2)
	forced := make(chan struct{})
	m := newTestMonitor(sigCh, func() { close(forced) })

	token := m.Start()
	sigCh <- syscall.SIGINT
	<-token.Done()
	sigCh <- syscall.SIGINT

	select {
	case <-forced:
	case <-time.After(time.Second):
		t.Fatal("second interrupt did not escalate to forced termination")
	}
}

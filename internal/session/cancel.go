package session

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
)

// CancelToken is a single-shot, idempotent cancellation signal shared
// between the monitor (writer) and the controller and engine (readers).
// Once signaled it stays signaled.
type CancelToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancelToken returns an unsignaled token.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel signals the token. Calling it twice is a no-op.
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.done) })
}

// Cancelled reports whether the token has been signaled.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token is signaled.
func (t *CancelToken) Done() <-chan struct{} {
	return t.done
}

// Bind derives a context that is cancelled when the token fires, which
// is how the token reaches engine calls and blocking reads.
func (t *CancelToken) Bind(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-t.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Monitor converts operator interrupts into cooperative cancellation.
// The first interrupt signals the token and lets the session shut down
// gracefully; a second interrupt before shutdown completes terminates
// the process immediately.
type Monitor struct {
	token   *CancelToken
	signals chan os.Signal
	notify  func()
	force   func()
	stop    func()
}

// NewMonitor returns a monitor wired to SIGINT/SIGTERM with a
// process-exit escalation.
func NewMonitor() *Monitor {
	sigCh := make(chan os.Signal, 2)
	return &Monitor{
		token:   NewCancelToken(),
		signals: sigCh,
		notify:  func() { signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM) },
		force:   func() { os.Exit(130) },
		stop:    func() { signal.Stop(sigCh) },
	}
}

// newTestMonitor builds a monitor with an injected signal source and
// escalation hook.
func newTestMonitor(signals chan os.Signal, force func()) *Monitor {
	return &Monitor{
		token:   NewCancelToken(),
		signals: signals,
		notify:  func() {},
		force:   force,
		stop:    func() {},
	}
}

// Start installs the interrupt listener and returns the shared token.
func (m *Monitor) Start() *CancelToken {
	m.notify()

	go func() {
		<-m.signals
		log.Warn("interrupt received, shutting down (press again to force quit)")
		m.token.Cancel()

		<-m.signals
		log.Error("second interrupt, terminating immediately")
		m.force()
	}()

	return m.token
}

// Stop uninstalls the interrupt listener.
func (m *Monitor) Stop() {
	m.stop()
}

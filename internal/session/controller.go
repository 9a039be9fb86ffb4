// Package session implements the orchestration layer that turns one CLI
// invocation into a supervised, cancellable transfer session: code
// presentation, confirmation, progress rendering and failure reporting
// around an external transfer engine.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"codedrop/internal/config"
	"codedrop/internal/engine"

	"github.com/charmbracelet/log"
)

// Role distinguishes the two ends of a session.
type Role int

const (
	RoleSend Role = iota
	RoleReceive
)

// Status is the session state. Terminal states are entered exactly
// once.
type Status int

const (
	StatusInit Status = iota
	StatusCodeAllocation
	StatusCodeAllocated
	StatusConfirmation
	StatusTransferring
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusInit:
		return "init"
	case StatusCodeAllocation:
		return "code-allocation"
	case StatusCodeAllocated:
		return "code-allocated"
	case StatusConfirmation:
		return "confirmation"
	case StatusTransferring:
		return "transferring"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Result is the session's terminal report. The CLI boundary maps Status
// to an exit code.
type Result struct {
	Status  Status
	Bytes   int64
	Elapsed time.Duration
	Err     error
}

// rejectTimeout bounds the courtesy reject notice sent to the peer when
// the gate declines.
const rejectTimeout = 2 * time.Second

// Controller owns one session and sequences its components: it requests
// or redeems a code, presents it, gates receive-side confirmation,
// supervises the transfer and always tears presentation down on the way
// out.
type Controller struct {
	cfg       *config.Config
	engine    engine.Engine
	presenter *Presenter
	reporter  *ProgressReporter
	gate      *ConfirmationGate
	token     *CancelToken
	out       io.Writer

	status Status
}

// NewController wires a controller. The token is shared with the
// cancellation monitor; the controller never constructs its own.
func NewController(cfg *config.Config, eng engine.Engine, presenter *Presenter, reporter *ProgressReporter, gate *ConfirmationGate, token *CancelToken, out io.Writer) *Controller {
	return &Controller{
		cfg:       cfg,
		engine:    eng,
		presenter: presenter,
		reporter:  reporter,
		gate:      gate,
		token:     token,
		out:       out,
		status:    StatusInit,
	}
}

// Status returns the controller's current state.
func (c *Controller) Status() Status {
	return c.status
}

// RunSend drives a send-side session to a terminal state.
func (c *Controller) RunSend(ctx context.Context, payload engine.Payload) Result {
	start := time.Now()
	ctx, unbind := c.token.Bind(ctx)
	defer unbind()
	defer c.presenter.Dismiss()
	defer c.engine.Close()

	c.status = StatusCodeAllocation
	if c.token.Cancelled() {
		return c.terminate(StatusCancelled, start, nil, "")
	}

	code, err := c.engine.AllocateCode(ctx, payload)
	if err != nil {
		return c.terminate(c.abortStatus(err), start, err, "")
	}

	c.status = StatusCodeAllocated
	c.presenter.Present(code)
	fmt.Fprintf(c.out, "On the other side, run: codedrop receive %s\n", code)

	return c.transfer(ctx, start)
}

// RunReceive drives a receive-side session to a terminal state.
func (c *Controller) RunReceive(ctx context.Context, code string) Result {
	start := time.Now()
	ctx, unbind := c.token.Bind(ctx)
	defer unbind()
	defer c.presenter.Dismiss()
	defer c.engine.Close()

	c.status = StatusCodeAllocation
	if c.token.Cancelled() {
		return c.terminate(StatusCancelled, start, nil, "")
	}

	meta, err := c.engine.RedeemCode(ctx, code)
	if err != nil {
		return c.terminate(c.abortStatus(err), start, err, "")
	}

	c.status = StatusCodeAllocated
	c.presenter.Present(code)

	c.status = StatusConfirmation
	decision, derr := c.gate.Confirm(ctx, *meta)
	if decision != Accept {
		if derr == nil {
			derr = ErrUserRejected
		}
		// Let the peer know, but do not let a dead connection hold up
		// our own shutdown.
		rctx, cancel := context.WithTimeout(context.Background(), rejectTimeout)
		if rerr := c.engine.Reject(rctx); rerr != nil {
			log.Debugf("could not deliver reject notice: %v", rerr)
		}
		cancel()
		return c.terminate(StatusCancelled, start, derr, "")
	}

	return c.transfer(ctx, start)
}

// transfer supervises the Transferring state: it wires the reporter to
// the engine's event stream and maps the terminal event to a terminal
// status, honoring the cancellation grace period.
func (c *Controller) transfer(ctx context.Context, start time.Time) Result {
	c.status = StatusTransferring

	events, err := c.engine.StartTransfer(ctx)
	if err != nil {
		return c.terminate(c.abortStatus(err), start, err, "")
	}

	samples := make(chan engine.ProgressSample, 16)
	reporterDone := make(chan struct{})
	go func() {
		c.reporter.Run(samples)
		close(reporterDone)
	}()

	var final engine.Event
	var acknowledged bool

loop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			if ev.Sample != nil {
				// Never block on the reporter; samples are absolute so
				// dropping one loses nothing.
				select {
				case samples <- *ev.Sample:
				default:
				}
			}
			if ev.Terminal {
				final = ev
				acknowledged = true
				break loop
			}
		case <-ctx.Done():
			final, acknowledged = c.drainWithGrace(events)
			break loop
		}
	}

	close(samples)
	<-reporterDone

	if !acknowledged {
		if ctx.Err() != nil {
			// The engine did not acknowledge within the grace period;
			// proceed to teardown anyway.
			return c.terminate(StatusCancelled, start, ctx.Err(), "")
		}
		// The stream ended with no terminal event and nobody asked for
		// cancellation: the engine broke its contract.
		err := &engine.TransferError{Reason: "event stream ended without an outcome"}
		return c.terminate(StatusFailed, start, err, "")
	}

	switch final.Outcome {
	case engine.OutcomeSuccess:
		return c.terminate(StatusCompleted, start, nil, final.Text)
	case engine.OutcomeCancelled:
		return c.terminate(StatusCancelled, start, final.Err, "")
	default:
		return c.terminate(StatusFailed, start, final.Err, "")
	}
}

// drainWithGrace keeps reading the event stream for the configured
// grace period after cancellation, hoping for a cooperative terminal
// event.
func (c *Controller) drainWithGrace(events <-chan engine.Event) (engine.Event, bool) {
	timer := time.NewTimer(c.cfg.Session.CancelGrace)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return engine.Event{}, false
			}
			if ev.Terminal {
				return ev, true
			}
		case <-timer.C:
			return engine.Event{}, false
		}
	}
}

// abortStatus maps an engine error to Cancelled when it was caused by
// the shared token, Failed otherwise.
func (c *Controller) abortStatus(err error) Status {
	if c.token.Cancelled() || errors.Is(err, context.Canceled) {
		return StatusCancelled
	}
	return StatusFailed
}

// terminate enters the terminal state, runs teardown and composes the
// single user-facing final message.
func (c *Controller) terminate(status Status, start time.Time, err error, text string) Result {
	c.status = status
	c.presenter.Dismiss()

	outcome := engine.OutcomeFailed
	switch status {
	case StatusCompleted:
		outcome = engine.OutcomeSuccess
	case StatusCancelled:
		outcome = engine.OutcomeCancelled
	}
	c.reporter.Finish(outcome)

	elapsed := time.Since(start)
	bytes := c.reporter.Current()

	switch status {
	case StatusCompleted:
		if text != "" {
			fmt.Fprintf(c.out, "Received message:\n%s\n", text)
		}
		rate := throughput(bytes, elapsed)
		fmt.Fprintf(c.out, "Transfer completed: %s in %s (%.2f MB/s)\n",
			formatBytes(bytes), elapsed.Round(time.Millisecond), rate)
	case StatusCancelled:
		if errors.Is(err, ErrUserRejected) {
			fmt.Fprintln(c.out, "Transfer declined.")
		} else if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(c.out, "Transfer cancelled: %v\n", err)
		} else {
			fmt.Fprintln(c.out, "Transfer cancelled.")
		}
	default:
		fmt.Fprintf(c.out, "Transfer failed: %v\n", err)
	}

	return Result{Status: status, Bytes: bytes, Elapsed: elapsed, Err: err}
}

func throughput(bytes int64, elapsed time.Duration) float64 {
	if elapsed.Seconds() <= 0 {
		return 0
	}
	return float64(bytes) / elapsed.Seconds() / (1024 * 1024)
}

// Package engine defines the transfer engine contract consumed by the
// session controller, and provides a WebRTC data channel implementation.
// The engine owns rendezvous, connection negotiation and bulk data
// movement; the controller only sequences it.
package engine

import (
	"context"
	"fmt"
	"time"
)

// Kind describes what a payload is.
type Kind string

const (
	KindFile      Kind = "file"
	KindText      Kind = "text"
	KindDirectory Kind = "directory"
)

// PeerMetadata is the sender-declared description of the offered payload.
// Immutable once received; the confirmation gate shows it to the user
// before any bulk data moves.
type PeerMetadata struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Kind Kind   `json:"kind"`
}

// ProgressSample is a point-in-time snapshot of transfer progress. Bytes
// is an absolute count, not a delta, so duplicate or reordered samples
// cannot corrupt a consumer that keeps the max.
type ProgressSample struct {
	Bytes   int64
	Total   int64
	Elapsed time.Duration
}

// Outcome tags the terminal event of a transfer stream.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Event is one element of the transfer event stream. A non-nil Sample is
// a progress update; Terminal marks the final event, after which the
// stream is closed. Text carries received message contents for text
// payloads on the receive side.
type Event struct {
	Sample   *ProgressSample
	Terminal bool
	Outcome  Outcome
	Err      error
	Text     string
}

// Engine is the external transfer collaborator. One engine instance
// serves one session; StartTransfer may be called at most once.
type Engine interface {
	// AllocateCode opens a rendezvous session for the payload and
	// returns the code to hand to the peer (send role).
	AllocateCode(ctx context.Context, p Payload) (string, error)

	// RedeemCode joins the rendezvous session behind code and returns
	// the sender-declared metadata (receive role). No bulk data moves
	// until StartTransfer.
	RedeemCode(ctx context.Context, code string) (*PeerMetadata, error)

	// StartTransfer begins moving data and returns the event stream.
	// The stream emits progress samples and ends with exactly one
	// terminal event; cancellation is delivered through ctx.
	StartTransfer(ctx context.Context) (<-chan Event, error)

	// Reject declines the offered payload (receive role) so the sender
	// learns the transfer will not happen.
	Reject(ctx context.Context) error

	// Close releases the engine's connection and mailbox resources.
	Close() error
}

// RendezvousError wraps failures during code allocation or redemption.
type RendezvousError struct {
	Op  string
	Err error
}

func (e *RendezvousError) Error() string {
	return fmt.Sprintf("rendezvous %s failed: %v", e.Op, e.Err)
}

func (e *RendezvousError) Unwrap() error { return e.Err }

// TransferError wraps data channel or integrity failures during the
// transfer itself.
type TransferError struct {
	Reason string
	Err    error
}

func (e *TransferError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transfer failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transfer failed: %s", e.Reason)
}

func (e *TransferError) Unwrap() error { return e.Err }

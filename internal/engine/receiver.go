package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// runReceiver drives the receive side: accept the offer, absorb chunks
// into the payload sink, verify the checksum, acknowledge.
func (e *WebRTCEngine) runReceiver(ctx context.Context, events chan Event) {
	start := time.Now()

	out, err := newSink(*e.meta, e.destDir)
	if err != nil {
		e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "cannot prepare destination", Err: err}})
		return
	}

	if err := e.sendFrame(frame{Type: frameAccept}); err != nil {
		out.Abort()
		e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "failed to accept transfer", Err: err}})
		return
	}

	hash := sha256.New()
	var received int64

	for {
		select {
		case chunk := <-e.data:
			if _, err := out.Write(chunk); err != nil {
				out.Abort()
				e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "failed to write payload", Err: err}})
				return
			}
			hash.Write(chunk)
			received += int64(len(chunk))
			e.emit(events, ProgressSample{Bytes: received, Total: e.meta.Size, Elapsed: time.Since(start)})

		case f := <-e.ctrl:
			switch f.Type {
			case frameEOF:
				checksum := hex.EncodeToString(hash.Sum(nil))
				if f.Checksum != "" && f.Checksum != checksum {
					out.Abort()
					e.sendFrame(frame{Type: frameError, Error: "integrity mismatch"})
					e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "integrity mismatch"}})
					return
				}

				text, err := out.Finish()
				if err != nil {
					e.sendFrame(frame{Type: frameError, Error: err.Error()})
					e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "failed to finalize payload", Err: err}})
					return
				}

				if err := e.sendFrame(frame{Type: frameDone}); err != nil {
					e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "failed to acknowledge transfer", Err: err}})
					return
				}
				e.emit(events, ProgressSample{Bytes: received, Total: e.meta.Size, Elapsed: time.Since(start)})
				e.finish(events, Event{Outcome: OutcomeSuccess, Text: text})
				return

			case frameError:
				out.Abort()
				e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: f.Error}})
				return

			default:
				out.Abort()
				e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: fmt.Sprintf("unexpected %s frame during transfer", f.Type)}})
				return
			}

		case err := <-e.connFail:
			out.Abort()
			e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "connection lost", Err: err}})
			return

		case <-ctx.Done():
			out.Abort()
			e.finish(events, Event{Outcome: OutcomeCancelled, Err: ctx.Err()})
			return
		}
	}
}

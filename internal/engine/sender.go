package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"codedrop/internal/signalling"
)

// runSender drives the send side of a transfer: wait for the peer's
// answer, offer metadata, then stream chunks once the peer accepts.
func (e *WebRTCEngine) runSender(ctx context.Context, events chan Event) {
	start := time.Now()

	encodedAnswer, err := e.mailbox.WaitForAnswer(ctx, e.code)
	if err != nil {
		e.finishAborted(ctx, events, &TransferError{Reason: "peer never connected", Err: err})
		return
	}
	answer, err := signalling.DecodeSessionDescription(encodedAnswer)
	if err != nil {
		e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "invalid answer from peer", Err: err}})
		return
	}
	if err := e.pc.SetRemoteDescription(answer); err != nil {
		e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "failed to apply peer answer", Err: err}})
		return
	}

	if err := e.waitOpen(ctx); err != nil {
		e.finishAborted(ctx, events, &TransferError{Reason: "data channel never opened", Err: err})
		return
	}

	meta := e.payload.Metadata()
	if err := e.sendFrame(frame{Type: frameMetadata, Meta: &meta}); err != nil {
		e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "failed to offer payload", Err: err}})
		return
	}

	f, err := e.waitCtrl(ctx)
	if err != nil {
		e.finishAborted(ctx, events, &TransferError{Reason: "waiting for peer decision", Err: err})
		return
	}
	switch f.Type {
	case frameAccept:
	case frameReject:
		e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "peer declined the transfer"}})
		return
	default:
		e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: fmt.Sprintf("unexpected %s frame before transfer", f.Type)}})
		return
	}

	reader, err := e.payload.Open()
	if err != nil {
		e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "cannot open payload", Err: err}})
		return
	}
	defer reader.Close()

	hash := sha256.New()
	buf := make([]byte, e.cfg.WebRTC.ChunkSize)
	var sent int64

	for {
		select {
		case <-ctx.Done():
			e.finish(events, Event{Outcome: OutcomeCancelled, Err: ctx.Err()})
			return
		case err := <-e.connFail:
			e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "connection lost", Err: err}})
			return
		default:
		}

		n, err := reader.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if sendErr := e.dc.Send(chunk); sendErr != nil {
				e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "failed to send chunk", Err: sendErr}})
				return
			}
			hash.Write(chunk)
			sent += int64(n)

			e.emit(events, ProgressSample{Bytes: sent, Total: e.payload.Size, Elapsed: time.Since(start)})

			// Flow control: back off until the channel drains.
			if e.dc.BufferedAmount() > e.cfg.WebRTC.MaxBufferedAmount {
				select {
				case <-e.sendMore:
				case <-ctx.Done():
					e.finish(events, Event{Outcome: OutcomeCancelled, Err: ctx.Err()})
					return
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "failed to read payload", Err: err}})
			return
		}
	}

	checksum := hex.EncodeToString(hash.Sum(nil))
	if err := e.sendFrame(frame{Type: frameEOF, Checksum: checksum}); err != nil {
		e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: "failed to finalize transfer", Err: err}})
		return
	}

	f, err = e.waitCtrl(ctx)
	if err != nil {
		e.finishAborted(ctx, events, &TransferError{Reason: "waiting for peer acknowledgement", Err: err})
		return
	}
	switch f.Type {
	case frameDone:
		e.emit(events, ProgressSample{Bytes: sent, Total: e.payload.Size, Elapsed: time.Since(start)})
		e.finish(events, Event{Outcome: OutcomeSuccess})
	case frameError:
		e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: f.Error}})
	default:
		e.finish(events, Event{Outcome: OutcomeFailed, Err: &TransferError{Reason: fmt.Sprintf("unexpected %s frame after transfer", f.Type)}})
	}
}

// emit delivers a progress sample without ever blocking the transfer:
// if the consumer lags, intermediate samples are dropped. Samples carry
// absolute byte counts, so dropped ones lose nothing.
func (e *WebRTCEngine) emit(events chan Event, s ProgressSample) {
	select {
	case events <- Event{Sample: &s}:
	default:
	}
}

// finishAborted distinguishes interrupt-driven aborts from genuine
// failures when a wait was cut short.
func (e *WebRTCEngine) finishAborted(ctx context.Context, events chan Event, failErr error) {
	if ctx.Err() != nil {
		e.finish(events, Event{Outcome: OutcomeCancelled, Err: ctx.Err()})
		return
	}
	e.finish(events, Event{Outcome: OutcomeFailed, Err: failErr})
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"codedrop/internal/config"
	"codedrop/internal/signalling"
	"codedrop/pkg/wordlist"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// allocateAttempts bounds retries when a generated code collides with a
// live mailbox session.
const allocateAttempts = 5

// closeTimeout bounds mailbox cleanup during Close.
const closeTimeout = 5 * time.Second

// WebRTCEngine moves payloads over a pion data channel, using a
// signalling mailbox for the code rendezvous. One engine serves one
// session end to end.
type WebRTCEngine struct {
	cfg     *config.Config
	mailbox signalling.Mailbox
	destDir string // receive side

	pc      *webrtc.PeerConnection
	dc      *webrtc.DataChannel
	code    string
	payload Payload       // send side, set by AllocateCode
	meta    *PeerMetadata // receive side, set by RedeemCode

	opened   chan struct{}
	ctrl     chan frame
	data     chan []byte
	connFail chan error
	sendMore chan struct{}
	done     chan struct{}

	started   bool
	closeOnce sync.Once
	closeErr  error
}

// NewWebRTCEngine builds an engine. destDir is where received payloads
// land; it is unused on the send side.
func NewWebRTCEngine(cfg *config.Config, mailbox signalling.Mailbox, destDir string) *WebRTCEngine {
	return &WebRTCEngine{
		cfg:      cfg,
		mailbox:  mailbox,
		destDir:  destDir,
		opened:   make(chan struct{}),
		ctrl:     make(chan frame, 8),
		data:     make(chan []byte, 32),
		connFail: make(chan error, 1),
		sendMore: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// AllocateCode opens the rendezvous session for a payload and returns
// the code to hand to the peer.
func (e *WebRTCEngine) AllocateCode(ctx context.Context, p Payload) (string, error) {
	e.payload = p

	if err := e.createPeerConnection(); err != nil {
		return "", &RendezvousError{Op: "allocation", Err: err}
	}

	ordered := true
	dc, err := e.pc.CreateDataChannel("transfer-"+uuid.NewString(), &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return "", &RendezvousError{Op: "allocation", Err: fmt.Errorf("failed to create data channel: %w", err)}
	}
	e.wireDataChannel(dc)

	offer, err := e.pc.CreateOffer(nil)
	if err != nil {
		return "", &RendezvousError{Op: "allocation", Err: fmt.Errorf("failed to create offer: %w", err)}
	}
	if err := e.pc.SetLocalDescription(offer); err != nil {
		return "", &RendezvousError{Op: "allocation", Err: fmt.Errorf("failed to set local description: %w", err)}
	}
	if err := e.waitForICEGathering(ctx); err != nil {
		return "", &RendezvousError{Op: "allocation", Err: err}
	}

	local := e.pc.LocalDescription()
	if local == nil {
		return "", &RendezvousError{Op: "allocation", Err: fmt.Errorf("local description is nil after ICE gathering")}
	}
	encoded, err := signalling.EncodeSessionDescription(*local)
	if err != nil {
		return "", &RendezvousError{Op: "allocation", Err: err}
	}

	for range allocateAttempts {
		code, err := wordlist.ChooseCode(e.cfg.Session.CodeWords)
		if err != nil {
			return "", &RendezvousError{Op: "allocation", Err: err}
		}

		err = e.mailbox.CreateSession(ctx, code, encoded)
		if errors.Is(err, signalling.ErrCodeTaken) {
			log.Debugf("code %s already in use, retrying", code)
			continue
		}
		if err != nil {
			return "", &RendezvousError{Op: "allocation", Err: err}
		}

		e.code = code
		return code, nil
	}

	return "", &RendezvousError{Op: "allocation", Err: fmt.Errorf("could not find a free code after %d attempts", allocateAttempts)}
}

// RedeemCode joins the session behind code and waits for the sender's
// payload metadata. No bulk data moves yet.
func (e *WebRTCEngine) RedeemCode(ctx context.Context, code string) (*PeerMetadata, error) {
	if err := wordlist.Validate(code); err != nil {
		return nil, &RendezvousError{Op: "redemption", Err: err}
	}

	if err := e.createPeerConnection(); err != nil {
		return nil, &RendezvousError{Op: "redemption", Err: err}
	}
	e.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		e.wireDataChannel(dc)
	})

	encodedOffer, err := e.mailbox.GetOffer(ctx, code)
	if err != nil {
		return nil, &RendezvousError{Op: "redemption", Err: err}
	}
	offer, err := signalling.DecodeSessionDescription(encodedOffer)
	if err != nil {
		return nil, &RendezvousError{Op: "redemption", Err: err}
	}
	if err := e.pc.SetRemoteDescription(offer); err != nil {
		return nil, &RendezvousError{Op: "redemption", Err: fmt.Errorf("failed to set remote description: %w", err)}
	}

	answer, err := e.pc.CreateAnswer(nil)
	if err != nil {
		return nil, &RendezvousError{Op: "redemption", Err: fmt.Errorf("failed to create answer: %w", err)}
	}
	if err := e.pc.SetLocalDescription(answer); err != nil {
		return nil, &RendezvousError{Op: "redemption", Err: fmt.Errorf("failed to set local description: %w", err)}
	}
	if err := e.waitForICEGathering(ctx); err != nil {
		return nil, &RendezvousError{Op: "redemption", Err: err}
	}

	local := e.pc.LocalDescription()
	if local == nil {
		return nil, &RendezvousError{Op: "redemption", Err: fmt.Errorf("local description is nil after ICE gathering")}
	}
	encodedAnswer, err := signalling.EncodeSessionDescription(*local)
	if err != nil {
		return nil, &RendezvousError{Op: "redemption", Err: err}
	}
	if err := e.mailbox.UpdateAnswer(ctx, code, encodedAnswer); err != nil {
		return nil, &RendezvousError{Op: "redemption", Err: err}
	}
	e.code = code

	f, err := e.waitCtrl(ctx)
	if err != nil {
		return nil, &RendezvousError{Op: "redemption", Err: err}
	}
	if f.Type != frameMetadata || f.Meta == nil {
		return nil, &RendezvousError{Op: "redemption", Err: fmt.Errorf("expected metadata frame, got %s", f.Type)}
	}

	e.meta = f.Meta
	return f.Meta, nil
}

// StartTransfer begins moving data. The returned stream emits progress
// samples and exactly one terminal event, then closes.
func (e *WebRTCEngine) StartTransfer(ctx context.Context) (<-chan Event, error) {
	if e.started {
		return nil, fmt.Errorf("transfer already started")
	}
	e.started = true

	events := make(chan Event, 16)
	switch {
	case e.meta != nil:
		go e.runReceiver(ctx, events)
	case e.code != "":
		go e.runSender(ctx, events)
	default:
		return nil, fmt.Errorf("no code allocated or redeemed")
	}
	return events, nil
}

// Reject tells the sender the offered payload was declined.
func (e *WebRTCEngine) Reject(ctx context.Context) error {
	if e.dc == nil {
		return fmt.Errorf("no data channel to reject on")
	}
	if err := e.sendFrame(frame{Type: frameReject}); err != nil {
		return fmt.Errorf("failed to send reject: %w", err)
	}
	return nil
}

// Close tears down the connection and deletes the mailbox session. Safe
// to call on every exit path; only the first call does work.
func (e *WebRTCEngine) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		if e.pc != nil {
			if err := e.pc.Close(); err != nil {
				e.closeErr = fmt.Errorf("error closing peer connection: %w", err)
			}
		}
		if e.code != "" {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if err := e.mailbox.DeleteSession(ctx, e.code); err != nil {
				log.Warnf("failed to clear mailbox session %s: %v", e.code, err)
			}
		}
	})
	return e.closeErr
}

func (e *WebRTCEngine) createPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: e.cfg.WebRTC.ICEServers,
	})
	if err != nil {
		return fmt.Errorf("failed to create peer connection: %w", err)
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debugf("peer connection state: %s", state)
		switch state {
		case webrtc.PeerConnectionStateFailed:
			e.fail(fmt.Errorf("peer connection failed"))
		case webrtc.PeerConnectionStateClosed:
			e.fail(fmt.Errorf("peer connection closed"))
		}
	})

	e.pc = pc
	return nil
}

// wireDataChannel installs the message handlers. Control frames arrive
// as string messages, bulk data as binary; the handlers fan them out to
// the ctrl and data channels consumed by the transfer loops.
func (e *WebRTCEngine) wireDataChannel(dc *webrtc.DataChannel) {
	e.dc = dc

	dc.OnOpen(func() {
		log.Debugf("data channel opened: %s", dc.Label())
		close(e.opened)
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if msg.IsString {
			f, err := decodeFrame(msg.Data)
			if err != nil {
				e.fail(err)
				return
			}
			e.deliverCtrl(f)
			return
		}
		e.deliverData(msg.Data)
	})

	dc.OnError(func(err error) {
		e.fail(fmt.Errorf("data channel error: %w", err))
	})

	dc.SetBufferedAmountLowThreshold(e.cfg.WebRTC.BufferedAmountLowThreshold)
	dc.OnBufferedAmountLow(func() {
		select {
		case e.sendMore <- struct{}{}:
		default:
		}
	})
}

func (e *WebRTCEngine) waitForICEGathering(ctx context.Context) error {
	select {
	case <-webrtc.GatheringCompletePromise(e.pc):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *WebRTCEngine) waitOpen(ctx context.Context) error {
	select {
	case <-e.opened:
		return nil
	case err := <-e.connFail:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *WebRTCEngine) waitCtrl(ctx context.Context) (frame, error) {
	select {
	case f := <-e.ctrl:
		return f, nil
	case err := <-e.connFail:
		return frame{}, err
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}

func (e *WebRTCEngine) sendFrame(f frame) error {
	data, err := encodeFrame(f)
	if err != nil {
		return err
	}
	return e.dc.SendText(string(data))
}

func (e *WebRTCEngine) fail(err error) {
	select {
	case e.connFail <- err:
	default:
	}
}

// deliverCtrl and deliverData hand incoming messages to the transfer
// loop. Once the engine is closed the loop is gone, so the sends must
// not pin pion's read goroutine.
func (e *WebRTCEngine) deliverCtrl(f frame) {
	select {
	case e.ctrl <- f:
	case <-e.done:
	}
}

func (e *WebRTCEngine) deliverData(data []byte) {
	select {
	case e.data <- data:
	case <-e.done:
	}
}

// finish delivers the terminal event and closes the stream. Delivery
// blocks until the consumer takes it, so queued samples can never push
// the outcome off a full buffer; a consumer that already gave up
// releases the send by closing the engine.
func (e *WebRTCEngine) finish(events chan Event, ev Event) {
	ev.Terminal = true
	select {
	case events <- ev:
	case <-e.done:
	}
	close(events)
}

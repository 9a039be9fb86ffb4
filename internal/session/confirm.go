package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"codedrop/internal/engine"
)

// ErrUserRejected marks a session the receiving user declined at the
// gate. It is a normal outcome, not a failure.
var ErrUserRejected = errors.New("transfer declined by user")

// Decision is the confirmation gate's single verdict.
type Decision int

const (
	Reject Decision = iota
	Accept
)

// ConfirmationGate shows the offered metadata and blocks for one
// accept/reject decision. The gate is consumed once per session; an
// interrupt while waiting resolves as Reject.
type ConfirmationGate struct {
	In         io.Reader
	Out        io.Writer
	AutoAccept bool

	used bool
}

// NewConfirmationGate builds a gate over the given streams.
func NewConfirmationGate(in io.Reader, out io.Writer, autoAccept bool) *ConfirmationGate {
	return &ConfirmationGate{In: in, Out: out, AutoAccept: autoAccept}
}

// Confirm displays the offer and waits for a decision. The blocking
// read is guarded by ctx so an interrupt unblocks it promptly.
func (g *ConfirmationGate) Confirm(ctx context.Context, meta engine.PeerMetadata) (Decision, error) {
	if g.used {
		return Reject, fmt.Errorf("confirmation gate already consumed")
	}
	g.used = true

	g.describe(meta)

	if g.AutoAccept {
		fmt.Fprintln(g.Out, "Accepting automatically.")
		return Accept, nil
	}

	fmt.Fprint(g.Out, "Accept? (y/N): ")

	inputCh := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(g.In)
		if scanner.Scan() {
			inputCh <- strings.TrimSpace(scanner.Text())
			return
		}
		inputCh <- ""
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(g.Out)
		return Reject, ctx.Err()
	case answer := <-inputCh:
		switch strings.ToLower(answer) {
		case "y", "yes":
			return Accept, nil
		default:
			return Reject, nil
		}
	}
}

func (g *ConfirmationGate) describe(meta engine.PeerMetadata) {
	switch meta.Kind {
	case engine.KindText:
		fmt.Fprintf(g.Out, "Peer is offering a text message (%s)\n", formatBytes(meta.Size))
	case engine.KindDirectory:
		fmt.Fprintf(g.Out, "Peer is offering directory archive %q (size streamed)\n", meta.Name)
	default:
		fmt.Fprintf(g.Out, "Peer is offering file %q (%s)\n", meta.Name, formatBytes(meta.Size))
	}
}

// formatBytes renders a human-readable byte count.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

package session

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"codedrop/internal/config"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	qrcode "github.com/skip2/go-qrcode"
)

// PresentationChannel is one surface the session code is shown on. A
// channel failure degrades to a warning, never a session failure, and
// Dismiss runs exactly once per opened channel on every exit path.
type PresentationChannel interface {
	Name() string
	Present(code string) error
	Dismiss() error
}

// TextChannel prints the code as a plain terminal line. Always enabled.
type TextChannel struct {
	Out io.Writer
}

func (c *TextChannel) Name() string { return "text" }

func (c *TextChannel) Present(code string) error {
	_, err := fmt.Fprintf(c.Out, "Session code: %s\n", code)
	return err
}

func (c *TextChannel) Dismiss() error { return nil }

// QRChannel renders the code as a terminal QR block and erases it on
// dismissal.
type QRChannel struct {
	Out   io.Writer
	lines int
}

func (c *QRChannel) Name() string { return "qr" }

func (c *QRChannel) Present(code string) error {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to build QR code: %w", err)
	}

	block := qr.ToSmallString(false)
	c.lines = strings.Count(block, "\n")
	_, err = fmt.Fprint(c.Out, block)
	return err
}

func (c *QRChannel) Dismiss() error {
	if c.lines == 0 {
		return nil
	}
	// Move up over the QR block and erase it so the terminal is left
	// the way we found it.
	_, err := fmt.Fprintf(c.Out, "\x1b[%dA\x1b[J", c.lines)
	c.lines = 0
	return err
}

// ClipboardChannel copies the code to the system clipboard and restores
// the prior contents on dismissal.
type ClipboardChannel struct {
	previous string
	wrote    bool
}

func (c *ClipboardChannel) Name() string { return "clipboard" }

func (c *ClipboardChannel) Present(code string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("no clipboard available on this system")
	}

	prev, err := clipboard.ReadAll()
	if err == nil {
		c.previous = prev
	}
	if err := clipboard.WriteAll(code); err != nil {
		return fmt.Errorf("failed to copy code: %w", err)
	}
	c.wrote = true
	return nil
}

func (c *ClipboardChannel) Dismiss() error {
	if !c.wrote {
		return nil
	}
	c.wrote = false
	return clipboard.WriteAll(c.previous)
}

// Presenter composes the enabled channels. Channels are independent:
// one failing does not stop the others.
type Presenter struct {
	channels []PresentationChannel
	active   []PresentationChannel
	dismiss  sync.Once
}

// NewPresenter builds a presenter from explicit channels, mostly for
// tests.
func NewPresenter(channels ...PresentationChannel) *Presenter {
	return &Presenter{channels: channels}
}

// BuildPresenter assembles the channel set from config: text always,
// QR and clipboard when enabled.
func BuildPresenter(cfg *config.SessionConfig, out io.Writer) *Presenter {
	channels := []PresentationChannel{&TextChannel{Out: out}}
	if cfg.ShowQR {
		channels = append(channels, &QRChannel{Out: out})
	}
	if cfg.CopyCode {
		channels = append(channels, &ClipboardChannel{})
	}
	return NewPresenter(channels...)
}

// Present shows the code on every enabled channel. Channel errors are
// logged as warnings; the session proceeds regardless.
func (p *Presenter) Present(code string) {
	for _, ch := range p.channels {
		if err := ch.Present(code); err != nil {
			log.Warnf("%s presentation unavailable: %v", ch.Name(), err)
			continue
		}
		p.active = append(p.active, ch)
	}
}

// Dismiss tears down every channel that actually presented, most
// recent first. Only the first call does work.
func (p *Presenter) Dismiss() {
	p.dismiss.Do(func() {
		for i := len(p.active) - 1; i >= 0; i-- {
			ch := p.active[i]
			if err := ch.Dismiss(); err != nil {
				log.Warnf("failed to restore %s channel: %v", ch.Name(), err)
			}
		}
		p.active = nil
	})
}

package config

import (
	"errors"
	"time"

	"github.com/pion/webrtc/v4"
)

var (
	ErrInvalidBufferConfig       = errors.New("buffered amount low threshold must be less than max buffered amount")
	ErrInvalidChunkSize          = errors.New("chunk size must be greater than 0")
	ErrInvalidCodeWords          = errors.New("code word count must be greater than 0")
	ErrInvalidCancelGrace        = errors.New("cancel grace period must be greater than 0")
	ErrInvalidMailboxCredentials = errors.New("mailbox credentials path must be set")
	ErrInvalidMailboxProjectID   = errors.New("mailbox project ID must be set")
	ErrInvalidMailboxDatabaseURL = errors.New("mailbox database URL must be set")
)

// Config holds all application configuration. It is built once in cmd and
// passed into the session controller; nothing below cmd reads files or
// environment variables directly.
type Config struct {
	Session SessionConfig `json:"session"`
	WebRTC  WebRTCConfig  `json:"webrtc"`
	Mailbox MailboxConfig `json:"mailbox"`
}

// SessionConfig controls session presentation and cancellation policy.
type SessionConfig struct {
	ShowQR      bool          `json:"show_qr"`      // render the code as a terminal QR block
	CopyCode    bool          `json:"copy_code"`    // copy the code to the system clipboard
	AutoAccept  bool          `json:"auto_accept"`  // skip the receive-side confirmation prompt
	Verbose     bool          `json:"verbose"`      // debug logging
	CodeWords   int           `json:"code_words"`   // words per generated code
	CancelGrace time.Duration `json:"cancel_grace"` // how long to wait for the engine after an interrupt
}

// WebRTCConfig holds transfer-engine transport configuration.
type WebRTCConfig struct {
	ICEServers                 []webrtc.ICEServer `json:"ice_servers"`
	BufferedAmountLowThreshold uint64             `json:"buffered_amount_low_threshold"`
	MaxBufferedAmount          uint64             `json:"max_buffered_amount"`
	ChunkSize                  int                `json:"chunk_size"`
}

// MailboxConfig holds rendezvous mailbox client configuration.
type MailboxConfig struct {
	ProjectID       string `json:"project_id"`
	DatabaseURL     string `json:"database_url"`
	CredentialsPath string `json:"credentials_path"`
}

// NewDefaultConfig returns a configuration with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			CodeWords:   2,
			CancelGrace: 3 * time.Second,
		},
		WebRTC: WebRTCConfig{
			ICEServers: []webrtc.ICEServer{
				{
					URLs: []string{"stun:stun.l.google.com:19302"},
				},
			},
			BufferedAmountLowThreshold: 512 * 1024,  // 512 KB
			MaxBufferedAmount:          1024 * 1024, // 1 MB
			ChunkSize:                  16 * 1024,   // 16 KB chunks
		},
	}
}

// Validate ensures the configuration is valid.
func (c *Config) Validate() error {
	if c.WebRTC.BufferedAmountLowThreshold >= c.WebRTC.MaxBufferedAmount {
		return ErrInvalidBufferConfig
	}
	if c.WebRTC.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if c.Session.CodeWords <= 0 {
		return ErrInvalidCodeWords
	}
	if c.Session.CancelGrace <= 0 {
		return ErrInvalidCancelGrace
	}
	if c.Mailbox.CredentialsPath == "" {
		return ErrInvalidMailboxCredentials
	}
	if c.Mailbox.ProjectID == "" {
		return ErrInvalidMailboxProjectID
	}
	if c.Mailbox.DatabaseURL == "" {
		return ErrInvalidMailboxDatabaseURL
	}
	return nil
}

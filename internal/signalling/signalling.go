// Package signalling implements the rendezvous mailbox: a small shared
// store where the sender parks an SDP offer under a session code and the
// receiver posts its answer.
package signalling

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Mailbox is the rendezvous storage contract. Sessions are keyed by the
// human-transcribable code.
type Mailbox interface {
	// CreateSession parks an offer under code. ErrCodeTaken is returned
	// when the code is already in use so callers can pick a fresh one.
	CreateSession(ctx context.Context, code, offer string) error
	GetOffer(ctx context.Context, code string) (string, error)
	UpdateAnswer(ctx context.Context, code, answer string) error
	// WaitForAnswer blocks until the receiver posts an answer or ctx is
	// cancelled.
	WaitForAnswer(ctx context.Context, code string) (string, error)
	DeleteSession(ctx context.Context, code string) error
}

// EncodeSessionDescription encodes a session description for mailbox
// storage.
func EncodeSessionDescription(sd webrtc.SessionDescription) (string, error) {
	bytes, err := json.Marshal(sd)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session description: %w", err)
	}
	return base64.StdEncoding.EncodeToString(bytes), nil
}

// DecodeSessionDescription decodes a stored session description.
func DecodeSessionDescription(encoded string) (webrtc.SessionDescription, error) {
	var sd webrtc.SessionDescription

	bytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return sd, fmt.Errorf("failed to decode base64: %w", err)
	}

	if err := json.Unmarshal(bytes, &sd); err != nil {
		return sd, fmt.Errorf("failed to unmarshal session description: %w", err)
	}

	return sd, nil
}

package engine

import (
	"encoding/json"
	"fmt"
)

// frameType labels the JSON control frames exchanged on the data
// channel. Bulk data travels as raw binary messages; control frames are
// sent as string messages so the two never mix.
type frameType string

const (
	frameMetadata frameType = "METADATA"
	frameAccept   frameType = "ACCEPT"
	frameReject   frameType = "REJECT"
	frameEOF      frameType = "EOF"
	frameDone     frameType = "DONE"
	frameError    frameType = "ERROR"
)

// frame is one control message on the data channel.
type frame struct {
	Type     frameType     `json:"type"`
	Meta     *PeerMetadata `json:"meta,omitempty"`
	Checksum string        `json:"checksum,omitempty"` // on EOF: sha256 of the streamed bytes
	Error    string        `json:"error,omitempty"`
}

func encodeFrame(f frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", f.Type, err)
	}
	return data, nil
}

func decodeFrame(data []byte) (frame, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return frame{}, fmt.Errorf("failed to decode control frame: %w", err)
	}
	if f.Type == "" {
		return frame{}, fmt.Errorf("control frame missing type")
	}
	return f, nil
}

package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	in := frame{
		Type: frameMetadata,
		Meta: &PeerMetadata{Name: "a.txt", Size: 12, Kind: KindFile},
	}

	data, err := encodeFrame(in)
	require.NoError(t, err)

	out, err := decodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	_, err := decodeFrame([]byte("not json"))
	assert.Error(t, err)

	_, err = decodeFrame([]byte(`{"checksum":"abc"}`))
	assert.Error(t, err, "a frame without a type is meaningless")
}

package engine

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFilePayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello, world"), 0o644))

	p, err := NewFilePayload(path)
	require.NoError(t, err)
	assert.Equal(t, KindFile, p.Kind)
	assert.Equal(t, "a.txt", p.Name)
	assert.Equal(t, int64(12), p.Size)

	r, err := p.Open()
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello, world", string(data))
}

func TestNewFilePayloadRejectsDirectory(t *testing.T) {
	_, err := NewFilePayload(t.TempDir())
	assert.Error(t, err)
}

func TestTextPayload(t *testing.T) {
	p := NewTextPayload("meet at noon")
	assert.Equal(t, KindText, p.Kind)
	assert.Equal(t, int64(12), p.Size)

	r, err := p.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "meet at noon", string(data))
}

func TestDirectoryPayloadRoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.txt"), []byte("top"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "nested.txt"), []byte("nested"), 0o644))

	p, err := NewDirectoryPayload(src)
	require.NoError(t, err)
	assert.Equal(t, KindDirectory, p.Kind)
	assert.Zero(t, p.Size, "archive size is unknown up front")

	r, err := p.Open()
	require.NoError(t, err)
	archive, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	// Feed the archive through the receive-side sink.
	dest := t.TempDir()
	s, err := newSink(p.Metadata(), dest)
	require.NoError(t, err)
	_, err = s.Write(archive)
	require.NoError(t, err)
	_, err = s.Finish()
	require.NoError(t, err)

	top, err := os.ReadFile(filepath.Join(dest, "top.txt"))
	require.NoError(t, err)
	assert.Equal(t, "top", string(top))

	nested, err := os.ReadFile(filepath.Join(dest, "sub", "nested.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nested", string(nested))
}

func TestFileSinkWritesAndAborts(t *testing.T) {
	dest := t.TempDir()
	meta := PeerMetadata{Name: "out.bin", Size: 3, Kind: KindFile}

	s, err := newSink(meta, dest)
	require.NoError(t, err)
	_, err = s.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = s.Finish()
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "out.bin"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))

	// Abort removes partial output.
	s, err = newSink(PeerMetadata{Name: "partial.bin", Kind: KindFile}, dest)
	require.NoError(t, err)
	_, err = s.Write([]byte("ab"))
	require.NoError(t, err)
	s.Abort()
	_, err = os.Stat(filepath.Join(dest, "partial.bin"))
	assert.True(t, os.IsNotExist(err))
}

func TestSinkSanitizesPeerControlledName(t *testing.T) {
	dest := t.TempDir()
	meta := PeerMetadata{Name: "../../evil.txt", Size: 4, Kind: KindFile}

	s, err := newSink(meta, dest)
	require.NoError(t, err)
	_, err = s.Write([]byte("data"))
	require.NoError(t, err)
	_, err = s.Finish()
	require.NoError(t, err)

	// The payload lands inside the destination, never above it.
	_, err = os.Stat(filepath.Join(dest, "evil.txt"))
	assert.NoError(t, err)
}

func TestTextSinkReturnsMessage(t *testing.T) {
	s, err := newSink(PeerMetadata{Name: "message", Kind: KindText}, "")
	require.NoError(t, err)
	_, err = s.Write([]byte("meet at noon"))
	require.NoError(t, err)

	text, err := s.Finish()
	require.NoError(t, err)
	assert.Equal(t, "meet at noon", text)
}

package engine

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Payload describes what a send-side session offers: a file on disk, an
// in-memory text message, or a directory streamed as a tar.gz archive.
type Payload struct {
	Kind Kind
	Name string
	Size int64 // 0 when unknown up front (directories)

	path string
	text string
}

// NewFilePayload builds a file payload, resolving its size.
func NewFilePayload(path string) (Payload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Payload{}, fmt.Errorf("cannot stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Payload{}, fmt.Errorf("%s is a directory, use a directory payload", path)
	}
	return Payload{
		Kind: KindFile,
		Name: filepath.Base(path),
		Size: info.Size(),
		path: path,
	}, nil
}

// NewTextPayload builds an in-memory text payload.
func NewTextPayload(text string) Payload {
	return Payload{
		Kind: KindText,
		Name: "message",
		Size: int64(len(text)),
		text: text,
	}
}

// NewDirectoryPayload builds a directory payload. The archive is
// produced while streaming, so the declared size stays 0 and progress
// for directories is indeterminate.
func NewDirectoryPayload(path string) (Payload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Payload{}, fmt.Errorf("cannot stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return Payload{}, fmt.Errorf("%s is not a directory", path)
	}
	return Payload{
		Kind: KindDirectory,
		Name: filepath.Base(path) + ".tar.gz",
		path: path,
	}, nil
}

// Open returns the byte stream to send for this payload.
func (p Payload) Open() (io.ReadCloser, error) {
	switch p.Kind {
	case KindFile:
		f, err := os.Open(p.path)
		if err != nil {
			return nil, fmt.Errorf("cannot open %s: %w", p.path, err)
		}
		return f, nil
	case KindText:
		return io.NopCloser(strings.NewReader(p.text)), nil
	case KindDirectory:
		return tarStream(p.path), nil
	default:
		return nil, fmt.Errorf("unknown payload kind %q", p.Kind)
	}
}

// Metadata returns the sender-declared description shipped to the peer.
func (p Payload) Metadata() PeerMetadata {
	return PeerMetadata{
		Name: p.Name,
		Size: p.Size,
		Kind: p.Kind,
	}
}

// tarStream archives root into a gzip-compressed tar stream on the fly.
func tarStream(root string) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		gz := gzip.NewWriter(pw)
		tw := tar.NewWriter(gz)

		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if rel == "." {
				return nil
			}

			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = filepath.ToSlash(rel)
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(tw, f)
			return err
		})

		if err == nil {
			err = tw.Close()
		} else {
			tw.Close()
		}
		if gzErr := gz.Close(); err == nil {
			err = gzErr
		}
		pw.CloseWithError(err)
	}()

	return pr
}

// sink is the receive-side counterpart of Payload: it absorbs the byte
// stream and materializes it according to the declared kind.
type sink interface {
	io.Writer
	// Finish flushes the sink. For text payloads the received message
	// is returned so it can be shown to the user.
	Finish() (string, error)
	// Abort discards partial output after a failed transfer.
	Abort()
}

// newSink builds a sink for the given metadata under destDir.
func newSink(meta PeerMetadata, destDir string) (sink, error) {
	// The name is peer-controlled, never trust its path components.
	name := filepath.Base(filepath.Clean(meta.Name))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("unusable payload name %q", meta.Name)
	}

	switch meta.Kind {
	case KindFile:
		return newFileSink(filepath.Join(destDir, name))
	case KindText:
		return &textSink{}, nil
	case KindDirectory:
		return newDirSink(destDir), nil
	default:
		return nil, fmt.Errorf("unknown payload kind %q", meta.Kind)
	}
}

type fileSink struct {
	f    *os.File
	path string
}

func newFileSink(path string) (*fileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cannot create %s: %w", path, err)
	}
	return &fileSink{f: f, path: path}, nil
}

func (s *fileSink) Write(p []byte) (int, error) { return s.f.Write(p) }

func (s *fileSink) Finish() (string, error) {
	if err := s.f.Close(); err != nil {
		return "", fmt.Errorf("cannot finalize %s: %w", s.path, err)
	}
	return "", nil
}

func (s *fileSink) Abort() {
	s.f.Close()
	os.Remove(s.path)
}

type textSink struct {
	buf bytes.Buffer
}

func (s *textSink) Write(p []byte) (int, error) { return s.buf.Write(p) }

func (s *textSink) Finish() (string, error) { return s.buf.String(), nil }

func (s *textSink) Abort() {}

// dirSink feeds an on-the-fly tar.gz extractor rooted at destDir.
type dirSink struct {
	pw      *io.PipeWriter
	done    chan error
	destDir string
}

func newDirSink(destDir string) *dirSink {
	pr, pw := io.Pipe()
	s := &dirSink{pw: pw, done: make(chan error, 1), destDir: destDir}

	go func() {
		s.done <- untar(pr, destDir)
		// Drain so the writer never blocks after an extractor error.
		io.Copy(io.Discard, pr)
	}()

	return s
}

func (s *dirSink) Write(p []byte) (int, error) { return s.pw.Write(p) }

func (s *dirSink) Finish() (string, error) {
	s.pw.Close()
	if err := <-s.done; err != nil {
		return "", fmt.Errorf("cannot unpack archive: %w", err)
	}
	return "", nil
}

func (s *dirSink) Abort() {
	s.pw.CloseWithError(fmt.Errorf("transfer aborted"))
	<-s.done
}

func untar(r io.Reader, destDir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		rel := filepath.Clean(filepath.FromSlash(hdr.Name))
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
			return fmt.Errorf("archive entry %q escapes destination", hdr.Name)
		}
		target := filepath.Join(destDir, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		default:
			// Symlinks and specials are skipped rather than trusted.
		}
	}
}

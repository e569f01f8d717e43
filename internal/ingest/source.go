package ingest

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// Source is a readable input file with a known size and declared media type.
type Source interface {
	io.ReaderAt
	Name() string
	MimeType() string
	Size() int64
}

// FileSource is a Source backed by a file on disk.
type FileSource struct {
	f        *os.File
	name     string
	mimeType string
	size     int64
}

// Open opens path for reading and determines its media type, first from the
// file extension and then by sniffing the leading bytes.
func Open(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	adviseSequential(f)

	src := &FileSource{
		f:    f,
		name: filepath.Base(path),
		size: info.Size(),
	}
	src.mimeType = mime.TypeByExtension(filepath.Ext(path))
	if src.mimeType == "" {
		head := make([]byte, 512)
		n, _ := f.ReadAt(head, 0)
		src.mimeType = http.DetectContentType(head[:n])
	}
	return src, nil
}

// ReadAt implements io.ReaderAt.
func (s *FileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }

// Name returns the base name of the file.
func (s *FileSource) Name() string { return s.name }

// MimeType returns the detected media type.
func (s *FileSource) MimeType() string { return s.mimeType }

// Size returns the size of the file at open time.
func (s *FileSource) Size() int64 { return s.size }

// Close closes the underlying file.
func (s *FileSource) Close() error { return s.f.Close() }

// BytesSource is an in-memory Source.
type BytesSource struct {
	*bytes.Reader
	name     string
	mimeType string
}

// NewBytesSource wraps data as a Source.
func NewBytesSource(name, mimeType string, data []byte) *BytesSource {
	return &BytesSource{Reader: bytes.NewReader(data), name: name, mimeType: mimeType}
}

// Name returns the configured name.
func (s *BytesSource) Name() string { return s.name }

// MimeType returns the configured media type.
func (s *BytesSource) MimeType() string { return s.mimeType }

var (
	_ Source = (*FileSource)(nil)
	_ Source = (*BytesSource)(nil)
)

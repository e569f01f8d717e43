package ingest

import (
	"context"
	"errors"
	"io"

	apperrors "github.com/agbru/blobmerge/internal/errors"
	"github.com/agbru/blobmerge/internal/payload"
	"github.com/agbru/blobmerge/internal/progress"
)

// DefaultChunkSize is the slice size used by ChunkReader when none is set.
const DefaultChunkSize = 1 << 20

// Reader turns a Source into a payload record, reporting progress in
// [0, target] onto sink.
type Reader interface {
	Read(ctx context.Context, src Source, sink progress.Sink, target float64) (payload.Record, error)
}

// ChunkReader reads a source in consecutive, non-overlapping slices.
type ChunkReader struct {
	// ChunkSize is the slice size in bytes. Zero means DefaultChunkSize.
	ChunkSize int
}

// Read implements Reader.
func (r ChunkReader) Read(ctx context.Context, src Source, sink progress.Sink, target float64) (payload.Record, error) {
	chunkSize := int64(r.ChunkSize)
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	size := src.Size()
	totalChunks := (size + chunkSize - 1) / chunkSize
	prog := progress.NewMonotonic(sink, target)

	data := make([]byte, size)
	var chunksRead int64
	for off := int64(0); off < size; off += chunkSize {
		if err := ctx.Err(); err != nil {
			return payload.Record{}, apperrors.ReadError{Name: src.Name(), Cause: err}
		}
		end := min(off+chunkSize, size)
		n, err := src.ReadAt(data[off:end], off)
		if int64(n) < end-off {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return payload.Record{}, apperrors.ReadError{Name: src.Name(), Cause: err}
		}
		chunksRead++
		prog.Report(float64(chunksRead) / float64(totalChunks) * target)
	}
	prog.Complete()

	return payload.Record{Data: data, MimeType: src.MimeType(), Name: src.Name()}, nil
}

// WholeFileReader reads a source in a single pass.
type WholeFileReader struct{}

// Read implements Reader.
func (WholeFileReader) Read(ctx context.Context, src Source, sink progress.Sink, target float64) (payload.Record, error) {
	size := src.Size()
	prog := progress.NewMonotonic(sink, target)
	cr := &countingReader{
		ctx: ctx,
		r:   io.NewSectionReader(src, 0, size),
		onRead: func(loaded int64) {
			prog.Report(target * float64(loaded) / float64(size))
		},
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(cr, data); err != nil {
		return payload.Record{}, apperrors.ReadError{Name: src.Name(), Cause: err}
	}
	prog.Complete()

	return payload.Record{Data: data, MimeType: src.MimeType(), Name: src.Name()}, nil
}

// countingReader reports the running byte count after every read.
type countingReader struct {
	ctx    context.Context
	r      io.Reader
	loaded int64
	onRead func(loaded int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := c.r.Read(p)
	if n > 0 {
		c.loaded += int64(n)
		c.onRead(c.loaded)
	}
	return n, err
}

var (
	_ Reader = ChunkReader{}
	_ Reader = WholeFileReader{}
)

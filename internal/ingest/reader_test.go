package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/agbru/blobmerge/internal/errors"
	"github.com/agbru/blobmerge/internal/progress"
)

// recordingSink captures every reported value.
type recordingSink struct{ values []float64 }

func (r *recordingSink) Report(v float64) { r.values = append(r.values, v) }

// failingSource fails any read that touches failAt.
type failingSource struct {
	*BytesSource
	failAt int64
}

func (f failingSource) ReadAt(p []byte, off int64) (int, error) {
	if off <= f.failAt && f.failAt < off+int64(len(p)) {
		return 0, errors.New("disk on fire")
	}
	return f.BytesSource.ReadAt(p, off)
}

func sequence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestChunkReader_ReadsAllSlicesInOrder(t *testing.T) {
	t.Parallel()
	data := sequence(10)
	src := NewBytesSource("photo.jpg", "image/jpeg", data)
	sink := &recordingSink{}

	rec, err := ChunkReader{ChunkSize: 4}.Read(context.Background(), src, sink, 25)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(rec.Data, data) {
		t.Errorf("Data = %v, want %v", rec.Data, data)
	}
	if rec.Name != "photo.jpg" || rec.MimeType != "image/jpeg" {
		t.Errorf("unexpected metadata: %q %q", rec.Name, rec.MimeType)
	}

	// Three slices of 4, 4 and 2 bytes, then the completion report.
	want := []float64{25.0 / 3, 50.0 / 3, 25, 25}
	if len(sink.values) != len(want) {
		t.Fatalf("progress = %v, want %v", sink.values, want)
	}
	for i := range want {
		if diff := sink.values[i] - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("progress[%d] = %v, want %v", i, sink.values[i], want[i])
		}
	}
}

func TestChunkReader_EmptySource(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	rec, err := ChunkReader{ChunkSize: 4}.Read(context.Background(), NewBytesSource("empty.rar", "", nil), sink, 50)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if rec.Len() != 0 {
		t.Errorf("expected empty record, got %d bytes", rec.Len())
	}
	if len(sink.values) != 1 || sink.values[0] != 50 {
		t.Errorf("progress = %v, want [50]", sink.values)
	}
}

func TestChunkReader_FailureNamesFile(t *testing.T) {
	t.Parallel()
	src := failingSource{BytesSource: NewBytesSource("data.rar", "", sequence(16)), failAt: 9}

	_, err := ChunkReader{ChunkSize: 4}.Read(context.Background(), src, progress.Discard{}, 50)
	var readErr apperrors.ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %v", err)
	}
	if readErr.Name != "data.rar" {
		t.Errorf("Name = %q, want data.rar", readErr.Name)
	}
}

func TestChunkReader_Canceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ChunkReader{ChunkSize: 2}.Read(ctx, NewBytesSource("a", "", sequence(8)), nil, 25)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWholeFileReader(t *testing.T) {
	t.Parallel()
	data := sequence(300)
	sink := &recordingSink{}

	rec, err := WholeFileReader{}.Read(context.Background(), NewBytesSource("a.png", "image/png", data), sink, 25)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(rec.Data, data) {
		t.Error("Data does not match source")
	}
	if len(sink.values) == 0 || sink.values[len(sink.values)-1] != 25 {
		t.Fatalf("final progress should be 25, got %v", sink.values)
	}
	for i := 1; i < len(sink.values); i++ {
		if sink.values[i] < sink.values[i-1] {
			t.Errorf("progress decreased at %d: %v", i, sink.values)
		}
	}
}

func TestWholeFileReader_Failure(t *testing.T) {
	t.Parallel()
	src := failingSource{BytesSource: NewBytesSource("broken.jpg", "", sequence(64)), failAt: 0}
	_, err := WholeFileReader{}.Read(context.Background(), src, nil, 25)
	var readErr apperrors.ReadError
	if !errors.As(err, &readErr) || readErr.Name != "broken.jpg" {
		t.Fatalf("expected ReadError for broken.jpg, got %v", err)
	}
}

func TestOpen_DetectsMimeType(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	jpg := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(jpg, []byte{0xFF, 0xD8, 0xFF, 0xE0}, 0o644); err != nil {
		t.Fatal(err)
	}
	noExt := filepath.Join(dir, "blob")
	if err := os.WriteFile(noExt, []byte("\x89PNG\r\n\x1a\n0000"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := Open(jpg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer src.Close()
	if src.MimeType() != "image/jpeg" || src.Size() != 4 || src.Name() != "photo.jpg" {
		t.Errorf("unexpected source: %q %d %q", src.MimeType(), src.Size(), src.Name())
	}

	sniffed, err := Open(noExt)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sniffed.Close()
	if sniffed.MimeType() != "image/png" {
		t.Errorf("MimeType() = %q, want image/png", sniffed.MimeType())
	}

	if _, err := Open(dir); err == nil {
		t.Error("Open(dir) should fail")
	}
	if _, err := Open(filepath.Join(dir, "missing")); err == nil {
		t.Error("Open(missing) should fail")
	}
}

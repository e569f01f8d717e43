package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
)

func TestOutputName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		carrier, format, custom, want string
	}{
		{"photo.JPG", "original", "", "photo-merged.jpg"},
		{"dir/photo.png", "original", "", "photo-merged.png"},
		{"photo.jpg", "custom", "zip", "photo-merged.zip"},
		{"photo.jpg", "custom", ".rar", "photo-merged.rar"},
		{"photo.jpg", "gif", "", "photo-merged.gif"},
		{"noext", "original", "", "noext-merged"},
		{"", "png", "", "output-merged.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputName(tt.carrier, tt.format, tt.custom), "%+v", tt)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	assert.IsType(t, &BucketExporter{}, New("mem://"))
	assert.IsType(t, &FileExporter{}, New("out"))
	fe, ok := New("").(*FileExporter)
	require.True(t, ok)
	assert.Equal(t, ".", fe.Dir)
}

func TestFileExporter(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested")
	loc, err := (&FileExporter{Dir: dir}).Export(context.Background(), []byte("merged"), "a-merged.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a-merged.jpg"), loc)

	got, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "merged", string(got))
}

func TestFileExporter_Canceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&FileExporter{Dir: t.TempDir()}).Export(ctx, []byte("x"), "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBucketExporter_Write(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bkt, err := blob.OpenBucket(ctx, "mem://")
	require.NoError(t, err)
	defer bkt.Close()

	e := &BucketExporter{URL: "mem://", ContentType: "image/jpeg"}
	loc, err := e.write(ctx, bkt, []byte("payload"), "out/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "mem://out/a.jpg", loc)

	got, err := bkt.ReadAll(ctx, "out/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))

	attrs, err := bkt.Attributes(ctx, "out/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", attrs.ContentType)
}

func TestBucketExporter_FileURL(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	e := &BucketExporter{URL: "file://" + filepath.ToSlash(dir)}
	loc, err := e.Export(context.Background(), []byte("abc"), "b.png")
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(dir)+"/b.png", loc)

	got, err := os.ReadFile(filepath.Join(dir, "b.png"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestBucketExporter_BadURL(t *testing.T) {
	t.Parallel()
	_, err := (&BucketExporter{URL: "nosuchscheme://x"}).Export(context.Background(), nil, "a")
	assert.Error(t, err)
}

func TestJoinURL(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "s3://bkt/k", joinURL("s3://bkt", "k"))
	assert.Equal(t, "s3://bkt/k", joinURL("s3://bkt/", "k"))
	assert.Equal(t, "s3://bkt/k?region=x", joinURL("s3://bkt?region=x", "k"))
}

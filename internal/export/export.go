//go:generate mockgen -source=export.go -destination=mocks/mock_exporter.go -package=mocks

// Package export writes merged blobs to their destination: a local
// directory or any bucket URL understood by gocloud.dev/blob.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	// Drivers for file:// and mem:// bucket URLs.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// Exporter stores a blob under name and returns where it ended up.
type Exporter interface {
	Export(ctx context.Context, data []byte, name string) (string, error)
}

// New returns a BucketExporter when target is a URL (contains "://") and a
// FileExporter for the directory target otherwise. An empty target means the
// current directory.
func New(target string) Exporter {
	if strings.Contains(target, "://") {
		return &BucketExporter{URL: target}
	}
	if target == "" {
		target = "."
	}
	return &FileExporter{Dir: target}
}

// FileExporter writes blobs into a local directory, creating it if needed.
type FileExporter struct {
	Dir string
}

// Export writes data to Dir/name.
func (e *FileExporter) Export(ctx context.Context, data []byte, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(e.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// BucketExporter writes blobs to a gocloud.dev bucket.
type BucketExporter struct {
	URL string
	// ContentType is stored with the object. Empty lets the driver sniff it.
	ContentType string
}

// Export opens the bucket, writes data under key name and closes the bucket.
func (e *BucketExporter) Export(ctx context.Context, data []byte, name string) (loc string, err error) {
	bkt, err := blob.OpenBucket(ctx, e.URL)
	if err != nil {
		return "", fmt.Errorf("open bucket %s: %w", e.URL, err)
	}
	defer func() {
		if cerr := bkt.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close bucket: %w", cerr)
		}
	}()
	return e.write(ctx, bkt, data, name)
}

func (e *BucketExporter) write(ctx context.Context, bkt *blob.Bucket, data []byte, name string) (string, error) {
	opts := &blob.WriterOptions{ContentType: e.ContentType}
	if err := bkt.WriteAll(ctx, name, data, opts); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return joinURL(e.URL, name), nil
}

// joinURL appends key to a bucket URL, keeping any query string at the end.
func joinURL(bucketURL, key string) string {
	base, query, hasQuery := strings.Cut(bucketURL, "?")
	loc := base
	if !strings.HasSuffix(loc, "/") {
		loc += "/"
	}
	loc += key
	if hasQuery {
		loc += "?" + query
	}
	return loc
}

// Output format selectors accepted by OutputName.
const (
	FormatOriginal = "original"
	FormatCustom   = "custom"
)

// Extension returns the output extension without a leading dot:
// the carrier's own extension for "original", custom for "custom", and the
// format string itself for anything else.
func Extension(carrierName, format, custom string) string {
	switch format {
	case FormatCustom:
		return strings.TrimPrefix(custom, ".")
	case FormatOriginal, "":
		return strings.ToLower(strings.TrimPrefix(filepath.Ext(carrierName), "."))
	default:
		return strings.TrimPrefix(format, ".")
	}
}

// OutputName derives the merged file name from the carrier name:
// "<base>-merged.<ext>".
func OutputName(carrierName, format, custom string) string {
	base := filepath.Base(carrierName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "output"
	}
	ext := Extension(carrierName, format, custom)
	if ext == "" {
		return base + "-merged"
	}
	return base + "-merged." + ext
}

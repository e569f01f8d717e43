// Package validate gates which files may enter the merge pipeline.
package validate

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	apperrors "github.com/agbru/blobmerge/internal/errors"
	"github.com/agbru/blobmerge/internal/ingest"
)

// RarSignature is the leading magic of RAR archives.
var RarSignature = []byte("Rar!")

// Validator accepts or rejects an input file.
type Validator interface {
	Validate(src ingest.Source, maxSize int64) error
}

// ImageValidator accepts files whose declared media type is image/*.
type ImageValidator struct{}

// Validate implements Validator.
func (ImageValidator) Validate(src ingest.Source, maxSize int64) error {
	if src == nil {
		return apperrors.ValidationError{Field: "carrier", Message: "no file given"}
	}
	if !strings.HasPrefix(src.MimeType(), "image/") {
		return apperrors.ValidationError{Field: "carrier", Message: "Invalid image file type"}
	}
	if src.Size() > maxSize {
		return apperrors.ValidationError{
			Field:   "carrier",
			Message: fmt.Sprintf("Image file exceeds %s limit", humanize.IBytes(uint64(maxSize))),
		}
	}
	return nil
}

// ArchiveValidator accepts files whose name ends in one of Extensions
// (".rar" when empty).
type ArchiveValidator struct {
	Extensions []string
}

// Validate implements Validator.
func (v ArchiveValidator) Validate(src ingest.Source, maxSize int64) error {
	if src == nil {
		return apperrors.ValidationError{Field: "cargo", Message: "no file given"}
	}
	exts := v.Extensions
	if len(exts) == 0 {
		exts = []string{".rar"}
	}
	ext := strings.ToLower(filepath.Ext(src.Name()))
	ok := false
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			ok = true
			break
		}
	}
	if !ok {
		return apperrors.ValidationError{Field: "cargo", Message: "Invalid archive file type"}
	}
	if src.Size() > maxSize {
		return apperrors.ValidationError{
			Field:   "cargo",
			Message: fmt.Sprintf("Archive file exceeds %s limit", humanize.IBytes(uint64(maxSize))),
		}
	}
	return nil
}

// ContainsSignature reports whether sig occurs entirely within the first
// limit bytes of data.
func ContainsSignature(data, sig []byte, limit int) bool {
	if limit < len(data) {
		data = data[:max(limit, 0)]
	}
	return bytes.Contains(data, sig)
}

// Package scrub removes embedded metadata from a carrier image before it is
// merged. Only JPEG is understood; other formats pass through unchanged.
package scrub

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/agbru/blobmerge/internal/payload"
)

// Settings selects which metadata families to remove.
type Settings struct {
	EXIF bool
	XMP  bool
	IPTC bool
}

// Any reports whether any family is selected.
func (s Settings) Any() bool { return s.EXIF || s.XMP || s.IPTC }

// Scrubber removes metadata from a record.
type Scrubber interface {
	Scrub(rec payload.Record, settings Settings) (payload.Record, error)
}

// ErrMalformed is returned for JPEG data whose segment structure is broken.
var ErrMalformed = errors.New("malformed JPEG segment")

const (
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP1  = 0xE1
	markerAPP13 = 0xED
)

var (
	exifHeader    = []byte("Exif\x00\x00")
	xmpHeader     = []byte("http://ns.adobe.com/xap/1.0/\x00")
	xmpExtHeader  = []byte("http://ns.adobe.com/xmp/extension/\x00")
	photoshopIPTC = []byte("Photoshop 3.0\x00")
)

// JPEGScrubber drops APP1 (EXIF, XMP) and APP13 (IPTC) segments.
type JPEGScrubber struct{}

// Scrub implements Scrubber. The returned record is a new copy; rec is not
// modified.
func (JPEGScrubber) Scrub(rec payload.Record, settings Settings) (payload.Record, error) {
	data := rec.Data
	if !settings.Any() || len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		return rec, nil
	}

	out := make([]byte, 0, len(data))
	out = append(out, data[:2]...)
	pos := 2
	for pos < len(data) {
		if data[pos] != 0xFF {
			return rec, fmt.Errorf("%s: %w at offset %d", rec.Name, ErrMalformed, pos)
		}
		// Fill bytes before a marker are legal.
		for pos+1 < len(data) && data[pos+1] == 0xFF {
			pos++
		}
		if pos+1 >= len(data) {
			return rec, fmt.Errorf("%s: %w: truncated marker", rec.Name, ErrMalformed)
		}
		marker := data[pos+1]

		if marker == markerEOI || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			out = append(out, data[pos:pos+2]...)
			pos += 2
			if marker == markerEOI {
				out = append(out, data[pos:]...)
				break
			}
			continue
		}
		if pos+4 > len(data) {
			return rec, fmt.Errorf("%s: %w: truncated length", rec.Name, ErrMalformed)
		}
		length := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		end := pos + 2 + length
		if length < 2 || end > len(data) {
			return rec, fmt.Errorf("%s: %w: bad length %d", rec.Name, ErrMalformed, length)
		}

		if marker == markerSOS {
			// Entropy-coded data follows; keep everything from here on.
			out = append(out, data[pos:]...)
			break
		}
		if !drop(marker, data[pos+4:end], settings) {
			out = append(out, data[pos:end]...)
		}
		pos = end
	}

	return payload.Record{Data: out, MimeType: rec.MimeType, Name: rec.Name}, nil
}

func drop(marker byte, body []byte, s Settings) bool {
	switch marker {
	case markerAPP1:
		if s.EXIF && bytes.HasPrefix(body, exifHeader) {
			return true
		}
		if s.XMP && (bytes.HasPrefix(body, xmpHeader) || bytes.HasPrefix(body, xmpExtHeader)) {
			return true
		}
	case markerAPP13:
		return s.IPTC && bytes.HasPrefix(body, photoshopIPTC)
	}
	return false
}

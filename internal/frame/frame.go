// Package frame holds the ProcessedFrame type and the decode/validate/
// deduplicate pipeline stage that turns raw encoded bytes from a camera
// into a frame usable by the conditioner. Adapted from the teacher's
// internal/model.Frame (timestamp+data cache entry) and
// internal/utils.IsValidJPEG, generalized from "cache a JPEG for replay" to
// "validate and fingerprint any decodable image for entropy conditioning".
package frame

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/vinith200527/webcamrng/internal/entropy"
	"github.com/vinith200527/webcamrng/internal/registry"
)

// MinDimension is the minimum width and height a decoded frame must meet
// (CROP_SIZE in spec.md, 100x100).
const MinDimension = 100

// ProcessedFrame is a validated image plus the metadata the conditioner
// mixes into every output block.
type ProcessedFrame struct {
	Image         image.Image
	SizeBytes     int
	LatencyMicros uint32
	Fingerprint   [16]byte
}

// ErrDuplicate indicates the frame's fingerprint was already present in the
// URL's recent-digest window; this is a silent-discard outcome, not a
// failure (spec.md §7).
var ErrDuplicate = fmt.Errorf("frame: duplicate fingerprint in recent window")

// ErrTooSmall indicates the decoded image fell below the minimum crop
// dimensions.
var ErrTooSmall = fmt.Errorf("frame: below minimum dimensions")

// Validate computes the frame's fingerprint, checks it against url's
// recent-digest window in reg, decodes the image, and enforces the minimum
// dimension invariant. latencyMicros is the caller-measured fetch latency.
func Validate(reg *registry.Registry, url string, encoded []byte, latencyMicros uint32) (*ProcessedFrame, error) {
	fp, err := entropy.Fingerprint(encoded)
	if err != nil {
		return nil, fmt.Errorf("frame: fingerprinting: %w", err)
	}

	if reg.CheckDuplicate(url, fp) {
		return nil, ErrDuplicate
	}

	img, _, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("frame: decoding image from %s: %w", url, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() < MinDimension || bounds.Dy() < MinDimension {
		return nil, ErrTooSmall
	}

	return &ProcessedFrame{
		Image:         img,
		SizeBytes:     len(encoded),
		LatencyMicros: latencyMicros,
		Fingerprint:   fp,
	}, nil
}

// IsPlausibleJPEG does a cheap magic-byte sanity check (SOI...EOI) before
// spending a full image.Decode on MJPEG chunks. Ported from the teacher's
// isValidJPEG, generalized to a public helper used by the MJPEG reader.
func IsPlausibleJPEG(data []byte) bool {
	if len(data) < 10 {
		return false
	}
	if data[0] != 0xFF || data[1] != 0xD8 {
		return false
	}
	if data[len(data)-2] != 0xFF || data[len(data)-1] != 0xD9 {
		return false
	}
	return true
}

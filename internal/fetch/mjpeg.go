package fetch

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vinith200527/webcamrng/internal/frame"
)

// mjpegChunkSize matches the reference implementation's 1KiB read
// granularity for scanning an MJPEG stream for a JPEG EOI marker.
const mjpegChunkSize = 1024

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// readMJPEGFirstFrame scans body in mjpegChunkSize chunks, accumulating
// into a buffer capped at maxScanBytes, looking for the JPEG end-of-image
// marker. Once found, it truncates at the marker, trims to the start-of-image
// marker if one is present within that prefix, and runs frame.IsPlausibleJPEG
// over the result as a cheap sanity check ahead of the full image.Decode
// frame.Validate will do downstream — a stream whose accumulated prefix
// isn't even shaped like a JPEG is rejected here instead of wasting a decode
// on it. Exceeding the scan limit without finding EOI is a failure.
func readMJPEGFirstFrame(body io.Reader, maxScanBytes int) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, mjpegChunkSize)

	for {
		n, err := body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])

			if buf.Len() > maxScanBytes {
				return nil, fmt.Errorf("fetch: mjpeg stream exceeded scan limit of %d bytes", maxScanBytes)
			}

			data := buf.Bytes()
			if eoiIdx := bytes.Index(data, jpegEOI); eoiIdx != -1 {
				candidate := data[:eoiIdx+2]
				if soiIdx := bytes.Index(candidate, jpegSOI); soiIdx != -1 {
					candidate = candidate[soiIdx:]
				}
				out := make([]byte, len(candidate))
				copy(out, candidate)
				if !frame.IsPlausibleJPEG(out) {
					return nil, fmt.Errorf("fetch: mjpeg frame failed plausibility check")
				}
				return out, nil
			}
		}
		if err == io.EOF {
			return nil, fmt.Errorf("fetch: mjpeg stream ended before an end-of-image marker")
		}
		if err != nil {
			return nil, fmt.Errorf("fetch: reading mjpeg stream: %w", err)
		}
	}
}

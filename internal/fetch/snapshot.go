package fetch

import (
	"fmt"
	"io"
)

// readSnapshot reads up to maxBytes+1 bytes from body (spec.md §4.3): if
// the (maxBytes+1)th byte is reachable, the snapshot is too large to be a
// plausible single image and is rejected outright rather than truncated.
func readSnapshot(body io.Reader, maxBytes int) ([]byte, error) {
	limited := io.LimitReader(body, int64(maxBytes)+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading snapshot body: %w", err)
	}
	if len(data) > maxBytes {
		return nil, fmt.Errorf("fetch: snapshot is too large (>%d bytes)", maxBytes)
	}
	return data, nil
}

package fetch

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMJPEGFirstFrameReturnsFirstFrameOnly(t *testing.T) {
	first := append([]byte{0xFF, 0xD8}, []byte("first-frame-body")...)
	first = append(first, 0xFF, 0xD9)
	second := append([]byte{0xFF, 0xD8}, []byte("second-frame-body")...)
	second = append(second, 0xFF, 0xD9)

	stream := append(append([]byte{}, first...), second...)

	got, err := readMJPEGFirstFrame(bytes.NewReader(stream), 1<<20)
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestReadMJPEGFirstFrameWithoutSOIFailsPlausibilityCheck(t *testing.T) {
	data := append([]byte("garbage-prefix-no-soi"), 0xFF, 0xD9)
	_, err := readMJPEGFirstFrame(bytes.NewReader(data), 1<<20)
	assert.Error(t, err)
}

func TestReadMJPEGFirstFrameExceedsScanLimit(t *testing.T) {
	data := bytes.Repeat([]byte{0x00}, 4096) // no EOI ever appears
	_, err := readMJPEGFirstFrame(bytes.NewReader(data), 1024)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "scan limit"))
}

func TestReadMJPEGFirstFrameEOFBeforeEOIFails(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0x01, 0x02, 0x03}
	_, err := readMJPEGFirstFrame(bytes.NewReader(data), 1<<20)
	require.Error(t, err)
}

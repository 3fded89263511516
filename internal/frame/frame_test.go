package frame

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinith200527/webcamrng/internal/registry"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: byte(x), G: byte(y), B: 0x10, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestValidateAcceptsLargeEnoughFrame(t *testing.T) {
	reg := registry.New(10, registry.DefaultDigestWindowSize)
	reg.Load([]string{"u1"})

	data := jpegBytes(t, 150, 150)
	f, err := Validate(reg, "u1", data, 1234)
	require.NoError(t, err)
	assert.Equal(t, 150, f.Image.Bounds().Dx())
	assert.Equal(t, len(data), f.SizeBytes)
	assert.Equal(t, uint32(1234), f.LatencyMicros)
}

func TestValidateRejectsBelowMinimumDimensions(t *testing.T) {
	reg := registry.New(10, registry.DefaultDigestWindowSize)
	reg.Load([]string{"u1"})

	data := jpegBytes(t, 99, 200)
	_, err := Validate(reg, "u1", data, 0)
	assert.ErrorIs(t, err, ErrTooSmall)
}

func TestValidateRejectsDuplicateFrame(t *testing.T) {
	reg := registry.New(10, registry.DefaultDigestWindowSize)
	reg.Load([]string{"u1"})

	data := jpegBytes(t, 150, 150)
	_, err := Validate(reg, "u1", data, 0)
	require.NoError(t, err)

	_, err = Validate(reg, "u1", data, 0)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestValidateRejectsUndecodableData(t *testing.T) {
	reg := registry.New(10, registry.DefaultDigestWindowSize)
	reg.Load([]string{"u1"})

	_, err := Validate(reg, "u1", []byte("not an image"), 0)
	require.Error(t, err)
}

func TestIsPlausibleJPEG(t *testing.T) {
	assert.True(t, IsPlausibleJPEG(append(append([]byte{0xFF, 0xD8}, make([]byte, 20)...), 0xFF, 0xD9)))
	assert.False(t, IsPlausibleJPEG([]byte{0x00, 0x01}))
	assert.False(t, IsPlausibleJPEG(nil))
}

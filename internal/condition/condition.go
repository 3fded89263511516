// Package condition implements the keyed streaming conditioner that turns
// one round's collected frames into NUM_RANDOMS_PER_FETCH fixed-width
// output blocks (spec.md §4.6).
package condition

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"image"
	"image/draw"

	"github.com/vinith200527/webcamrng/internal/entropy"
	"github.com/vinith200527/webcamrng/internal/frame"
)

// CropSize is the fixed crop window side length (100x100 per CROP_SIZE).
const CropSize = 100

// OSEntropyTailBytes is the width of the fresh OS-entropy tail mixed into
// every finished block.
const OSEntropyTailBytes = 64

// Condition produces blocksPerRound 64-byte output blocks from frames,
// keyed by secret. Each output block derives its own per-frame crop
// coordinates from that frame's fingerprint and the output index, so
// successive blocks from the same frame set are decorrelated.
func Condition(frames []frame.ProcessedFrame, secret entropy.Secret, blocksPerRound int) ([][entropy.BlockSize]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("condition: no frames to condition")
	}

	blocks := make([][entropy.BlockSize]byte, 0, blocksPerRound)
	for outIdx := 0; outIdx < blocksPerRound; outIdx++ {
		block, err := conditionOne(frames, secret, uint64(outIdx))
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func conditionOne(frames []frame.ProcessedFrame, secret entropy.Secret, outIdx uint64) ([entropy.BlockSize]byte, error) {
	var zero [entropy.BlockSize]byte

	h, err := entropy.NewConditioningHash(secret)
	if err != nil {
		return zero, err
	}

	anyMixed := false
	for _, f := range frames {
		if err := mixFrame(h, f, secret, outIdx); err != nil {
			// Skip a frame whose crop/pixel extraction fails; spec.md §4.6
			// step 2 requires the block not abort on a single bad frame.
			continue
		}
		anyMixed = true
	}
	if !anyMixed {
		return zero, fmt.Errorf("condition: every frame failed crop/pixel extraction for output index %d", outIdx)
	}

	tail := make([]byte, OSEntropyTailBytes)
	if _, err := rand.Read(tail); err != nil {
		return zero, fmt.Errorf("condition: drawing os-entropy tail: %w", err)
	}
	h.Write(tail)

	return h.Finish(), nil
}

// mixFrame derives this frame's crop rectangle for outIdx, extracts and
// RGB-converts the crop, and feeds the crop pixels plus size/latency
// metadata into h.
func mixFrame(h *entropy.ConditioningHash, f frame.ProcessedFrame, secret entropy.Secret, outIdx uint64) error {
	bounds := f.Image.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < CropSize || height < CropSize {
		return fmt.Errorf("condition: frame smaller than crop size")
	}

	seed, err := entropy.DeriveCropSeed(secret, f.Fingerprint, outIdx)
	if err != nil {
		return err
	}

	maxX := width - CropSize + 1
	maxY := height - CropSize + 1
	x := int(binary.BigEndian.Uint32(seed[0:4])) % maxX
	y := int(binary.BigEndian.Uint32(seed[4:8])) % maxY

	origin := bounds.Min
	cropRect := image.Rect(origin.X+x, origin.Y+y, origin.X+x+CropSize, origin.Y+y+CropSize)
	if !cropRect.In(bounds) {
		return fmt.Errorf("condition: derived crop rectangle outside frame bounds")
	}

	rgb := image.NewRGBA(image.Rect(0, 0, CropSize, CropSize))
	draw.Draw(rgb, rgb.Bounds(), f.Image, cropRect.Min, draw.Src)

	pixels := make([]byte, 0, CropSize*CropSize*3)
	for py := 0; py < CropSize; py++ {
		for px := 0; px < CropSize; px++ {
			i := rgb.PixOffset(px, py)
			pixels = append(pixels, rgb.Pix[i], rgb.Pix[i+1], rgb.Pix[i+2])
		}
	}
	h.Write(pixels)

	var sizeBuf, latencyBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], uint32(f.SizeBytes))
	binary.BigEndian.PutUint32(latencyBuf[:], f.LatencyMicros)
	h.Write(sizeBuf[:])
	h.Write(latencyBuf[:])

	return nil
}

// Hex formats a finished block as its 128-character lowercase hex string
// (spec.md §6 output block wire format).
func Hex(block [entropy.BlockSize]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, entropy.BlockSize*2)
	for i, b := range block {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0F]
	}
	return string(out)
}

// Package entropy owns the process's StartupSecret and the two keyed
// BLAKE2b derivations built on top of it: the crop-coordinate PRF and the
// final block-conditioning hash. Everything that needs "the" secret takes
// it as an explicit [32]byte argument rather than reading a package global,
// per the single-owner design in SPEC_FULL.md §9.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// CropPersonalization and ConditionPersonalization are the BLAKE2b
// personalisation tags from spec.md §4.6.
var (
	CropPersonalization      = [...]byte{'c', 'r', 'o', 'p', '-', 'v', '1'}
	ConditionPersonalization = [...]byte{'w', 'e', 'b', 'c', 'a', 'm', '-', 'r', 'n', 'g', '-', 'v', '3'}
)

const (
	// SecretSize is the width of the StartupSecret in bytes.
	SecretSize = 32
	// FingerprintSize is the width of the unkeyed frame-identity digest.
	FingerprintSize = 16
	// CropSeedSize is the width of the keyed crop-coordinate PRF output.
	CropSeedSize = 8
	// BlockSize is the width of a finished output block.
	BlockSize = 64
)

// Secret is a 32-byte value drawn once from the OS cryptographic source at
// process start and held for the process lifetime. It is never persisted
// or logged.
type Secret [SecretSize]byte

// NewSecret draws a fresh StartupSecret from crypto/rand.
func NewSecret() (Secret, error) {
	var s Secret
	if _, err := rand.Read(s[:]); err != nil {
		return s, fmt.Errorf("entropy: drawing startup secret: %w", err)
	}
	return s, nil
}

// Fingerprint computes the unkeyed 16-byte BLAKE2b identity of encoded
// image bytes, used for deduplication and as PRF input. It is an identity,
// not a secret, so it is not keyed.
func Fingerprint(encoded []byte) ([FingerprintSize]byte, error) {
	var out [FingerprintSize]byte
	h, err := blake2b.New(FingerprintSize, nil)
	if err != nil {
		return out, fmt.Errorf("entropy: building fingerprint hash: %w", err)
	}
	h.Write(encoded)
	copy(out[:], h.Sum(nil))
	return out, nil
}

// DeriveCropSeed runs the keyed crop-coordinate PRF: BLAKE2b(key=secret,
// person="crop-v1", size=8) over fingerprint || big-endian 8-byte output
// index. The caller reduces the first/second 4 bytes modulo the available
// x/y ranges.
func DeriveCropSeed(secret Secret, fingerprint [FingerprintSize]byte, outputIndex uint64) ([CropSeedSize]byte, error) {
	var out [CropSeedSize]byte
	h, err := blake2b.New(CropSeedSize, secret[:])
	if err != nil {
		return out, fmt.Errorf("entropy: building crop PRF: %w", err)
	}
	if _, err := h.Write(personalize(CropPersonalization[:])); err != nil {
		return out, err
	}
	h.Write(fingerprint[:])
	var ctrBuf [8]byte
	binary.BigEndian.PutUint64(ctrBuf[:], outputIndex)
	h.Write(ctrBuf[:])
	copy(out[:], h.Sum(nil))
	return out, nil
}

// NewConditioningHash builds the streaming keyed BLAKE2b instance used to
// condition one output block: key=secret, person="webcam-rng-v3", size=64.
func NewConditioningHash(secret Secret) (*ConditioningHash, error) {
	h, err := blake2b.New(BlockSize, secret[:])
	if err != nil {
		return nil, fmt.Errorf("entropy: building conditioning hash: %w", err)
	}
	ch := &ConditioningHash{h: h}
	if _, err := ch.h.Write(personalize(ConditionPersonalization[:])); err != nil {
		return nil, err
	}
	return ch, nil
}

// ConditioningHash wraps a streaming BLAKE2b instance so callers feed it
// crop pixels and per-frame metadata without holding the whole frame set in
// memory at once (spec.md §4.6's "streaming mix").
type ConditioningHash struct {
	h interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
	}
}

// Write feeds raw bytes into the streaming hash.
func (c *ConditioningHash) Write(p []byte) {
	c.h.Write(p)
}

// Finish returns the finished 64-byte digest.
func (c *ConditioningHash) Finish() [BlockSize]byte {
	var out [BlockSize]byte
	copy(out[:], c.h.Sum(nil))
	return out
}

// personalize returns a domain-separation tag to write first into a keyed
// hash stream. golang.org/x/crypto/blake2b has no personalisation parameter
// like the reference hashlib.blake2b(person=...), so the tag is folded into
// the stream itself instead — two hashes keyed identically but prefixed
// with different tags never collide on input.
func personalize(tag []byte) []byte {
	return tag
}

package decoder

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"alfalfa/internal/raster"
)

// FingerprintSize is the length of a Fingerprint in bytes.
const FingerprintSize = 32

// Fingerprint is a content hash of the decode-relevant part of a decoder
// state. Equal states always share a fingerprint.
type Fingerprint [FingerprintSize]byte

// String returns the hex encoding.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first eight hex digits.
func (f Fingerprint) Short() string {
	return hex.EncodeToString(f[:4])
}

// IsZero reports whether f is the zero value, which no decoder produces.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	parsed, err := ParseFingerprint(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFingerprint decodes the hex form produced by String.
func ParseFingerprint(value string) (Fingerprint, error) {
	var f Fingerprint
	raw, err := hex.DecodeString(value)
	if err != nil {
		return f, fmt.Errorf("parse fingerprint: %w", err)
	}
	if len(raw) != FingerprintSize {
		return f, fmt.Errorf("parse fingerprint: want %d bytes, got %d", FingerprintSize, len(raw))
	}
	copy(f[:], raw)
	return f, nil
}

// fingerprintState hashes dimensions, entropy context, segmentation, loop
// filter deltas and the three reference rasters. The continuation raster is a
// diffing baseline rather than decoder input and is left out, so aligning
// continuation rasters never invalidates a serialized frame.
func fingerprintState(width, height uint16, s *State) Fingerprint {
	h := blake3.New()

	var buf [4]byte
	binary.LittleEndian.PutUint16(buf[0:2], width)
	binary.LittleEndian.PutUint16(buf[2:4], height)
	_, _ = h.Write(buf[:])

	_, _ = h.Write(s.Probabilities.Bytes())
	_, _ = h.Write(s.Segmentation.bytes())
	_, _ = h.Write(s.FilterAdjustments.bytes())

	for _, r := range []*raster.Raster{s.References.Last, s.References.Golden, s.References.AltRef} {
		sum := r.Hash()
		_, _ = h.Write(sum[:])
	}

	var out Fingerprint
	copy(out[:], h.Sum(nil))
	return out
}

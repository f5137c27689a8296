package raster

import (
	"encoding/binary"
	"encoding/hex"
	"image"

	"github.com/zeebo/blake3"
)

// Hash identifies raster content.
type Hash [32]byte

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first eight hex digits, enough for log lines.
func (h Hash) Short() string {
	return hex.EncodeToString(h[:4])
}

// Raster is a decoded 4:2:0 picture. Rasters are immutable once constructed and
// are shared by pointer between decoder states, so the same picture can act as a
// reference frame in one state and a continuation baseline in another.
type Raster struct {
	img  *image.YCbCr
	hash Hash
}

// New wraps img and hashes its visible content. The caller must not modify img
// afterwards.
func New(img *image.YCbCr) *Raster {
	if img == nil {
		return nil
	}
	return &Raster{img: img, hash: hashImage(img)}
}

// Blank returns a zero-filled raster of the given size.
func Blank(width, height int) *Raster {
	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio420)
	return New(img)
}

// Width returns the display width in pixels.
func (r *Raster) Width() int {
	if r == nil {
		return 0
	}
	return r.img.Rect.Dx()
}

// Height returns the display height in pixels.
func (r *Raster) Height() int {
	if r == nil {
		return 0
	}
	return r.img.Rect.Dy()
}

// Image exposes the underlying picture. It is shared and must be treated as
// read-only.
func (r *Raster) Image() *image.YCbCr {
	if r == nil {
		return nil
	}
	return r.img
}

// Hash returns the content hash computed at construction. A nil raster hashes
// to the zero value.
func (r *Raster) Hash() Hash {
	if r == nil {
		return Hash{}
	}
	return r.hash
}

// Equal reports whether both rasters hold the same picture.
func (r *Raster) Equal(other *Raster) bool {
	if r == other {
		return true
	}
	if r == nil || other == nil {
		return false
	}
	return r.hash == other.hash
}

func hashImage(img *image.YCbCr) Hash {
	h := blake3.New()

	var dims [8]byte
	binary.LittleEndian.PutUint32(dims[0:4], uint32(img.Rect.Dx()))
	binary.LittleEndian.PutUint32(dims[4:8], uint32(img.Rect.Dy()))
	_, _ = h.Write(dims[:])

	b := img.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := img.YOffset(b.Min.X, y)
		_, _ = h.Write(img.Y[start : start+b.Dx()])
	}

	cw := chromaWidth(img)
	for _, plane := range [][]byte{img.Cb, img.Cr} {
		last := -1
		for y := b.Min.Y; y < b.Max.Y; y++ {
			start := img.COffset(b.Min.X, y)
			if start == last {
				continue
			}
			last = start
			_, _ = h.Write(plane[start : start+cw])
		}
	}

	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func chromaWidth(img *image.YCbCr) int {
	b := img.Rect
	switch img.SubsampleRatio {
	case image.YCbCrSubsampleRatio444, image.YCbCrSubsampleRatio440:
		return b.Dx()
	case image.YCbCrSubsampleRatio411, image.YCbCrSubsampleRatio410:
		return (b.Max.X+3)/4 - b.Min.X/4
	default:
		return (b.Max.X+1)/2 - b.Min.X/2
	}
}

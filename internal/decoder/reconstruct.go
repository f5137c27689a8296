package decoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/zeebo/blake3"
	xvp8 "golang.org/x/image/vp8"

	"alfalfa/internal/raster"
	"alfalfa/internal/vp8"
)

// ErrInterPrediction is returned by reconstructors that cannot decode inter frames.
var ErrInterPrediction = errors.New("inter frame reconstruction not supported")

// Frame is one parsed compressed frame handed to a Reconstructor.
type Frame struct {
	Header vp8.FrameHeader
	Chunk  vp8.UncompressedChunk
	// Data is the complete compressed frame.
	Data []byte
}

// Reconstructor turns a parsed frame into pixels. refs are the reference
// rasters in effect before the frame and must not be modified.
type Reconstructor interface {
	Reconstruct(f *Frame, refs References) (*raster.Raster, error)
}

// ReconstructorFunc adapts a function to Reconstructor.
type ReconstructorFunc func(f *Frame, refs References) (*raster.Raster, error)

// Reconstruct calls fn.
func (fn ReconstructorFunc) Reconstruct(f *Frame, refs References) (*raster.Raster, error) {
	return fn(f, refs)
}

// IntraReconstructor decodes key frames with golang.org/x/image/vp8. Inter
// frames fail with ErrInterPrediction.
type IntraReconstructor struct{}

// Reconstruct implements Reconstructor.
func (IntraReconstructor) Reconstruct(f *Frame, _ References) (*raster.Raster, error) {
	if !f.Header.Tag.KeyFrame {
		return nil, ErrInterPrediction
	}
	dec := xvp8.NewDecoder()
	dec.Init(bytes.NewReader(f.Data), len(f.Data))
	if _, err := dec.DecodeFrameHeader(); err != nil {
		return nil, fmt.Errorf("reconstruct key frame: %w", err)
	}
	img, err := dec.DecodeFrame()
	if err != nil {
		return nil, fmt.Errorf("reconstruct key frame: %w", err)
	}
	return raster.New(img), nil
}

// SyntheticReconstructor accepts every frame and derives placeholder pixels
// from the compressed data and the last reference. Decoder state evolves
// exactly as with real reconstruction, so fingerprints, diffs and frame
// compatibility stay meaningful while the pixels themselves are not.
type SyntheticReconstructor struct{}

// Reconstruct implements Reconstructor.
func (SyntheticReconstructor) Reconstruct(f *Frame, refs References) (*raster.Raster, error) {
	width, height := refs.Last.Width(), refs.Last.Height()
	h := blake3.New()
	_, _ = h.Write(f.Data)
	if f.Header.Tag.KeyFrame {
		width, height = int(f.Header.Key.Width), int(f.Header.Key.Height)
	} else {
		last := refs.Last.Hash()
		_, _ = h.Write(last[:])
	}
	if width == 0 || height == 0 {
		return nil, errors.New("synthetic reconstruction: no picture size for inter frame")
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio420)
	digest := h.Digest()
	if _, err := io.ReadFull(digest, img.Y); err != nil {
		return nil, fmt.Errorf("synthetic reconstruction: %w", err)
	}
	if _, err := io.ReadFull(digest, img.Cb); err != nil {
		return nil, fmt.Errorf("synthetic reconstruction: %w", err)
	}
	if _, err := io.ReadFull(digest, img.Cr); err != nil {
		return nil, fmt.Errorf("synthetic reconstruction: %w", err)
	}
	return raster.New(img), nil
}

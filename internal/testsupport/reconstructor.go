package testsupport

import (
	"image"

	"alfalfa/internal/decoder"
	"alfalfa/internal/raster"
)

// ScriptedReconstructor produces deterministic pictures without real
// prediction. Key frames depend only on their payload; inter frames mix the
// payload with the last reference so that decode order matters.
type ScriptedReconstructor struct {
	// Err, when set, is returned for every frame.
	Err error
	// Calls counts Reconstruct invocations, including failed ones.
	Calls int
}

// Reconstruct implements decoder.Reconstructor.
func (s *ScriptedReconstructor) Reconstruct(f *decoder.Frame, refs decoder.References) (*raster.Raster, error) {
	s.Calls++
	if s.Err != nil {
		return nil, s.Err
	}

	width, height := refs.Last.Width(), refs.Last.Height()
	seed := append([]byte{0x5a}, f.Chunk.Rest...)
	if f.Header.Tag.KeyFrame {
		width, height = int(f.Header.Key.Width), int(f.Header.Key.Height)
	} else {
		sum := refs.Last.Hash()
		seed = append(seed, sum[:]...)
	}
	return Picture(width, height, seed), nil
}

// Picture fills a width x height raster by cycling through seed.
func Picture(width, height int, seed []byte) *raster.Raster {
	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio420)
	if len(seed) == 0 {
		return raster.New(img)
	}
	for i := range img.Y {
		img.Y[i] = seed[i%len(seed)] + byte(i/len(seed))
	}
	for i := range img.Cb {
		img.Cb[i] = seed[(i+1)%len(seed)]
		img.Cr[i] = seed[(i+2)%len(seed)]
	}
	return raster.New(img)
}

// NewDecoder returns a decoder wired to a fresh ScriptedReconstructor.
func NewDecoder(width, height uint16) *decoder.Decoder {
	return decoder.New(width, height, decoder.WithReconstructor(&ScriptedReconstructor{}))
}

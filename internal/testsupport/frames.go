package testsupport

import (
	"alfalfa/internal/vp8"
)

// CoeffIndex addresses one coefficient probability.
type CoeffIndex [4]int

// MVIndex addresses one motion vector probability.
type MVIndex [2]int

// FrameSpec describes a VP8 frame header field by field. BuildFrame encodes
// it in the order the header parser reads it back.
type FrameSpec struct {
	Key     bool
	Width   uint16
	Height  uint16
	Version uint8
	Hidden  bool

	ColorSpace   uint8
	ClampingType uint8

	Segment        vp8.SegmentHeader
	Filter         vp8.FilterHeader
	PartitionsLog2 uint8
	Quant          vp8.QuantIndices

	RefreshGolden  bool
	RefreshAltRef  bool
	CopyToGolden   uint8
	CopyToAltRef   uint8
	SignBiasGolden bool
	SignBiasAltRef bool
	RefreshEntropy bool
	RefreshLast    bool

	CoeffUpdates map[CoeffIndex]uint8

	SkipEnabled   bool
	ProbSkipFalse uint8
	ProbIntra     uint8
	ProbLast      uint8
	ProbGolden    uint8

	YModeProbs  *[vp8.YModeProbCount]uint8
	UVModeProbs *[vp8.UVModeProbCount]uint8
	// MVUpdates values must be even or 1; the bitstream carries seven bits.
	MVUpdates map[MVIndex]uint8

	// Payload follows the first partition. The scripted reconstructor derives
	// pixels from it.
	Payload []byte
}

// KeyFrameSpec returns a shown key frame that refreshes the entropy context.
func KeyFrameSpec(width, height uint16, payload ...byte) FrameSpec {
	return FrameSpec{
		Key:            true,
		Width:          width,
		Height:         height,
		RefreshEntropy: true,
		Payload:        payload,
	}
}

// InterFrameSpec returns a shown inter frame that refreshes only the last
// reference and keeps its probability updates.
func InterFrameSpec(payload ...byte) FrameSpec {
	return FrameSpec{
		RefreshEntropy: true,
		RefreshLast:    true,
		ProbIntra:      128,
		ProbLast:       128,
		ProbGolden:     128,
		Payload:        payload,
	}
}

// KeyFrame encodes KeyFrameSpec.
func KeyFrame(width, height uint16, payload ...byte) []byte {
	return BuildFrame(KeyFrameSpec(width, height, payload...))
}

// InterFrame encodes InterFrameSpec.
func InterFrame(payload ...byte) []byte {
	return BuildFrame(InterFrameSpec(payload...))
}

// BuildFrame encodes spec as a complete compressed frame.
func BuildFrame(spec FrameSpec) []byte {
	first := encodeHeader(&spec)

	tag := uint32(len(first))<<5 | uint32(spec.Version&7)<<1
	if !spec.Key {
		tag |= 1
	}
	if !spec.Hidden {
		tag |= 1 << 4
	}
	out := []byte{byte(tag), byte(tag >> 8), byte(tag >> 16)}
	if spec.Key {
		out = append(out, 0x9d, 0x01, 0x2a,
			byte(spec.Width), byte(spec.Width>>8),
			byte(spec.Height), byte(spec.Height>>8))
	}
	out = append(out, first...)
	return append(out, spec.Payload...)
}

func encodeHeader(spec *FrameSpec) []byte {
	e := NewBoolEncoder()

	if spec.Key {
		e.Literal(uint32(spec.ColorSpace), 1)
		e.Literal(uint32(spec.ClampingType), 1)
	}
	encodeSegment(e, &spec.Segment)
	encodeFilter(e, &spec.Filter)
	e.Literal(uint32(spec.PartitionsLog2), 2)
	encodeQuant(e, &spec.Quant)

	if spec.Key {
		e.Flag(spec.RefreshEntropy)
	} else {
		e.Flag(spec.RefreshGolden)
		e.Flag(spec.RefreshAltRef)
		if !spec.RefreshGolden {
			e.Literal(uint32(spec.CopyToGolden), 2)
		}
		if !spec.RefreshAltRef {
			e.Literal(uint32(spec.CopyToAltRef), 2)
		}
		e.Flag(spec.SignBiasGolden)
		e.Flag(spec.SignBiasAltRef)
		e.Flag(spec.RefreshEntropy)
		e.Flag(spec.RefreshLast)
	}

	for i := range vp8.CoeffUpdateProbs {
		for j := range vp8.CoeffUpdateProbs[i] {
			for k := range vp8.CoeffUpdateProbs[i][j] {
				for l, prob := range vp8.CoeffUpdateProbs[i][j][k] {
					v, ok := spec.CoeffUpdates[CoeffIndex{i, j, k, l}]
					e.Bool(prob, ok)
					if ok {
						e.Literal(uint32(v), 8)
					}
				}
			}
		}
	}

	e.Flag(spec.SkipEnabled)
	if spec.SkipEnabled {
		e.Literal(uint32(spec.ProbSkipFalse), 8)
	}

	if !spec.Key {
		e.Literal(uint32(spec.ProbIntra), 8)
		e.Literal(uint32(spec.ProbLast), 8)
		e.Literal(uint32(spec.ProbGolden), 8)
		e.Flag(spec.YModeProbs != nil)
		if spec.YModeProbs != nil {
			for _, p := range spec.YModeProbs {
				e.Literal(uint32(p), 8)
			}
		}
		e.Flag(spec.UVModeProbs != nil)
		if spec.UVModeProbs != nil {
			for _, p := range spec.UVModeProbs {
				e.Literal(uint32(p), 8)
			}
		}
		for i := range vp8.MVUpdateProbs {
			for j, prob := range vp8.MVUpdateProbs[i] {
				v, ok := spec.MVUpdates[MVIndex{i, j}]
				e.Bool(prob, ok)
				if ok {
					e.Literal(uint32(v>>1), 7)
				}
			}
		}
	}
	return e.Bytes()
}

func encodeSegment(e *BoolEncoder, seg *vp8.SegmentHeader) {
	e.Flag(seg.Enabled)
	if !seg.Enabled {
		return
	}
	e.Flag(seg.UpdateMap)
	e.Flag(seg.UpdateData)
	if seg.UpdateData {
		e.Flag(seg.AbsoluteDelta)
		for _, v := range seg.Quantizer {
			e.OptionalSigned(v, v != 0, 7)
		}
		for _, v := range seg.FilterLevel {
			e.OptionalSigned(v, v != 0, 6)
		}
	}
	if seg.UpdateMap {
		for _, p := range seg.TreeProbs {
			e.Flag(p != 255)
			if p != 255 {
				e.Literal(uint32(p), 8)
			}
		}
	}
}

func encodeFilter(e *BoolEncoder, f *vp8.FilterHeader) {
	e.Flag(f.Simple)
	e.Literal(uint32(f.Level), 6)
	e.Literal(uint32(f.Sharpness), 3)
	e.Flag(f.DeltasEnabled)
	if !f.DeltasEnabled {
		return
	}
	e.Flag(f.UpdateDeltas)
	if !f.UpdateDeltas {
		return
	}
	for i, v := range f.RefDeltas {
		e.OptionalSigned(v, f.RefDeltaMask[i], 6)
	}
	for i, v := range f.ModeDeltas {
		e.OptionalSigned(v, f.ModeDeltaMask[i], 6)
	}
}

func encodeQuant(e *BoolEncoder, q *vp8.QuantIndices) {
	e.Literal(uint32(q.YAC), 7)
	for _, v := range []int8{q.YDCDelta, q.Y2DCDelta, q.Y2ACDelta, q.UVDCDelta, q.UVACDelta} {
		e.OptionalSigned(v, v != 0, 4)
	}
}

package vp8

import (
	"errors"
	"fmt"
)

// ErrTruncatedHeader marks a first partition that ends before the frame header does.
var ErrTruncatedHeader = errors.New("truncated vp8 frame header")

const (
	// MaxSegments is the number of macroblock segments.
	MaxSegments = 4
	// SegmentTreeProbs is the number of segment map tree probabilities.
	SegmentTreeProbs = 3
	// RefLFDeltas is the number of per-reference loop filter deltas.
	RefLFDeltas = 4
	// ModeLFDeltas is the number of per-mode loop filter deltas.
	ModeLFDeltas = 4
)

// Buffer copy sources for golden and alternate reference updates.
// CopyFromOther names the alternate buffer when updating golden and the golden
// buffer when updating alternate.
const (
	CopyNone      uint8 = 0
	CopyFromLast  uint8 = 1
	CopyFromOther uint8 = 2
)

// SegmentHeader is the segmentation section of the frame header.
type SegmentHeader struct {
	Enabled       bool
	UpdateMap     bool
	UpdateData    bool
	AbsoluteDelta bool
	Quantizer     [MaxSegments]int8
	FilterLevel   [MaxSegments]int8
	TreeProbs     [SegmentTreeProbs]uint8
}

// FilterHeader is the loop filter section of the frame header. Delta entries
// are only meaningful where the matching mask entry is set; the others keep
// whatever the decoder already had.
type FilterHeader struct {
	Simple        bool
	Level         uint8
	Sharpness     uint8
	DeltasEnabled bool
	UpdateDeltas  bool
	RefDeltas     [RefLFDeltas]int8
	RefDeltaMask  [RefLFDeltas]bool
	ModeDeltas    [ModeLFDeltas]int8
	ModeDeltaMask [ModeLFDeltas]bool
}

// QuantIndices are the frame-level dequantization indices.
type QuantIndices struct {
	YAC       uint8
	YDCDelta  int8
	Y2DCDelta int8
	Y2ACDelta int8
	UVDCDelta int8
	UVACDelta int8
}

// FrameHeader is the decoded first-partition header of one frame.
type FrameHeader struct {
	Tag FrameTag
	Key KeyFrameInfo

	ColorSpace   uint8
	ClampingType uint8

	Segment    SegmentHeader
	Filter     FilterHeader
	Partitions int
	Quant      QuantIndices

	RefreshGolden       bool
	RefreshAltRef       bool
	CopyToGolden        uint8
	CopyToAltRef        uint8
	SignBiasGolden      bool
	SignBiasAltRef      bool
	RefreshEntropyProbs bool
	RefreshLast         bool

	SkipEnabled   bool
	ProbSkipFalse uint8
	ProbIntra     uint8
	ProbLast      uint8
	ProbGolden    uint8

	// Probabilities are the tables in effect while this frame decodes.
	Probabilities ProbabilityTables
}

// ParseFrameHeader decodes the frame header in the first partition. previous
// holds the decoder's persistent probabilities; key frames ignore it and start
// from DefaultProbabilities.
func ParseFrameHeader(chunk UncompressedChunk, previous ProbabilityTables) (FrameHeader, error) {
	hdr := FrameHeader{Tag: chunk.Tag, Key: chunk.Key}
	if chunk.Tag.KeyFrame {
		hdr.Probabilities = DefaultProbabilities()
	} else {
		hdr.Probabilities = previous
	}

	d := newBoolDecoder(chunk.FirstPartition)

	if chunk.Tag.KeyFrame {
		hdr.ColorSpace = uint8(d.readLiteral(1))
		hdr.ClampingType = uint8(d.readLiteral(1))
	}

	parseSegmentHeader(d, &hdr.Segment)
	parseFilterHeader(d, &hdr.Filter)

	hdr.Partitions = 1 << d.readLiteral(2)
	parseQuantIndices(d, &hdr.Quant)

	if chunk.Tag.KeyFrame {
		hdr.RefreshGolden = true
		hdr.RefreshAltRef = true
		hdr.RefreshLast = true
		hdr.RefreshEntropyProbs = d.readFlag()
	} else {
		hdr.RefreshGolden = d.readFlag()
		hdr.RefreshAltRef = d.readFlag()
		if !hdr.RefreshGolden {
			hdr.CopyToGolden = uint8(d.readLiteral(2))
		}
		if !hdr.RefreshAltRef {
			hdr.CopyToAltRef = uint8(d.readLiteral(2))
		}
		hdr.SignBiasGolden = d.readFlag()
		hdr.SignBiasAltRef = d.readFlag()
		hdr.RefreshEntropyProbs = d.readFlag()
		hdr.RefreshLast = d.readFlag()
	}

	parseCoeffUpdates(d, &hdr.Probabilities)

	hdr.SkipEnabled = d.readFlag()
	if hdr.SkipEnabled {
		hdr.ProbSkipFalse = uint8(d.readLiteral(8))
	}

	if !chunk.Tag.KeyFrame {
		hdr.ProbIntra = uint8(d.readLiteral(8))
		hdr.ProbLast = uint8(d.readLiteral(8))
		hdr.ProbGolden = uint8(d.readLiteral(8))
		if d.readFlag() {
			for i := range hdr.Probabilities.YMode {
				hdr.Probabilities.YMode[i] = uint8(d.readLiteral(8))
			}
		}
		if d.readFlag() {
			for i := range hdr.Probabilities.UVMode {
				hdr.Probabilities.UVMode[i] = uint8(d.readLiteral(8))
			}
		}
		parseMVUpdates(d, &hdr.Probabilities)
	}

	if d.exhausted() {
		return FrameHeader{}, fmt.Errorf("%w: first partition is %d bytes", ErrTruncatedHeader, len(chunk.FirstPartition))
	}
	if hdr.CopyToGolden > CopyFromOther || hdr.CopyToAltRef > CopyFromOther {
		return FrameHeader{}, fmt.Errorf("%w: invalid buffer copy flags %d/%d", ErrMalformedChunk, hdr.CopyToGolden, hdr.CopyToAltRef)
	}
	return hdr, nil
}

// RFC 6386 section 9.3.
func parseSegmentHeader(d *boolDecoder, seg *SegmentHeader) {
	seg.Enabled = d.readFlag()
	if !seg.Enabled {
		return
	}
	seg.UpdateMap = d.readFlag()
	seg.UpdateData = d.readFlag()
	if seg.UpdateData {
		seg.AbsoluteDelta = d.readFlag()
		for i := range seg.Quantizer {
			seg.Quantizer[i], _ = d.readOptionalSigned(7)
		}
		for i := range seg.FilterLevel {
			seg.FilterLevel[i], _ = d.readOptionalSigned(6)
		}
	}
	if seg.UpdateMap {
		for i := range seg.TreeProbs {
			seg.TreeProbs[i] = 255
			if d.readFlag() {
				seg.TreeProbs[i] = uint8(d.readLiteral(8))
			}
		}
	}
}

// RFC 6386 section 9.4.
func parseFilterHeader(d *boolDecoder, f *FilterHeader) {
	f.Simple = d.readFlag()
	f.Level = uint8(d.readLiteral(6))
	f.Sharpness = uint8(d.readLiteral(3))
	f.DeltasEnabled = d.readFlag()
	if !f.DeltasEnabled {
		return
	}
	f.UpdateDeltas = d.readFlag()
	if !f.UpdateDeltas {
		return
	}
	for i := range f.RefDeltas {
		f.RefDeltas[i], f.RefDeltaMask[i] = d.readOptionalSigned(6)
	}
	for i := range f.ModeDeltas {
		f.ModeDeltas[i], f.ModeDeltaMask[i] = d.readOptionalSigned(6)
	}
}

// RFC 6386 section 9.6.
func parseQuantIndices(d *boolDecoder, q *QuantIndices) {
	q.YAC = uint8(d.readLiteral(7))
	q.YDCDelta, _ = d.readOptionalSigned(4)
	q.Y2DCDelta, _ = d.readOptionalSigned(4)
	q.Y2ACDelta, _ = d.readOptionalSigned(4)
	q.UVDCDelta, _ = d.readOptionalSigned(4)
	q.UVACDelta, _ = d.readOptionalSigned(4)
}

// RFC 6386 section 13.4.
func parseCoeffUpdates(d *boolDecoder, p *ProbabilityTables) {
	for i := range p.Coeff {
		for j := range p.Coeff[i] {
			for k := range p.Coeff[i][j] {
				for l := range p.Coeff[i][j][k] {
					if d.readBool(CoeffUpdateProbs[i][j][k][l]) {
						p.Coeff[i][j][k][l] = uint8(d.readLiteral(8))
					}
				}
			}
		}
	}
}

// RFC 6386 section 17.2.
func parseMVUpdates(d *boolDecoder, p *ProbabilityTables) {
	for i := range p.MV {
		for j := range p.MV[i] {
			if d.readBool(MVUpdateProbs[i][j]) {
				v := uint8(d.readLiteral(7))
				if v == 0 {
					p.MV[i][j] = 1
				} else {
					p.MV[i][j] = v << 1
				}
			}
		}
	}
}

package decoder

import (
	"alfalfa/internal/raster"
	"alfalfa/internal/vp8"
)

// Segmentation is the persistent segment configuration.
type Segmentation struct {
	Enabled       bool
	AbsoluteDelta bool
	Quantizer     [vp8.MaxSegments]int8
	FilterLevel   [vp8.MaxSegments]int8
	TreeProbs     [vp8.SegmentTreeProbs]uint8
}

func defaultSegmentation() Segmentation {
	return Segmentation{TreeProbs: [vp8.SegmentTreeProbs]uint8{255, 255, 255}}
}

func (s Segmentation) bytes() []byte {
	out := make([]byte, 0, 2+2*vp8.MaxSegments+vp8.SegmentTreeProbs)
	out = append(out, boolByte(s.Enabled), boolByte(s.AbsoluteDelta))
	for _, v := range s.Quantizer {
		out = append(out, byte(v))
	}
	for _, v := range s.FilterLevel {
		out = append(out, byte(v))
	}
	return append(out, s.TreeProbs[:]...)
}

// update folds one frame's segment header into the persistent configuration.
func (s *Segmentation) update(hdr *vp8.SegmentHeader) {
	s.Enabled = hdr.Enabled
	if hdr.UpdateData {
		s.AbsoluteDelta = hdr.AbsoluteDelta
		s.Quantizer = hdr.Quantizer
		s.FilterLevel = hdr.FilterLevel
	}
	if hdr.UpdateMap {
		s.TreeProbs = hdr.TreeProbs
	}
}

// FilterAdjustments are the persistent loop filter deltas.
type FilterAdjustments struct {
	Enabled    bool
	RefDeltas  [vp8.RefLFDeltas]int8
	ModeDeltas [vp8.ModeLFDeltas]int8
}

func (f FilterAdjustments) bytes() []byte {
	out := make([]byte, 0, 1+vp8.RefLFDeltas+vp8.ModeLFDeltas)
	out = append(out, boolByte(f.Enabled))
	for _, v := range f.RefDeltas {
		out = append(out, byte(v))
	}
	for _, v := range f.ModeDeltas {
		out = append(out, byte(v))
	}
	return out
}

func (f *FilterAdjustments) update(hdr *vp8.FilterHeader) {
	f.Enabled = hdr.DeltasEnabled
	for i, set := range hdr.RefDeltaMask {
		if set {
			f.RefDeltas[i] = hdr.RefDeltas[i]
		}
	}
	for i, set := range hdr.ModeDeltaMask {
		if set {
			f.ModeDeltas[i] = hdr.ModeDeltas[i]
		}
	}
}

// References are the three reference rasters inter frames predict from.
type References struct {
	Last   *raster.Raster
	Golden *raster.Raster
	AltRef *raster.Raster
}

// update applies the buffer copy flags before the refresh flags, in libvpx's
// order: the alternate copy first, so a golden copy from the alternate sees
// the alternate just copied.
func (r *References) update(hdr *vp8.FrameHeader, decoded *raster.Raster) {
	switch hdr.CopyToAltRef {
	case vp8.CopyFromLast:
		r.AltRef = r.Last
	case vp8.CopyFromOther:
		r.AltRef = r.Golden
	}
	switch hdr.CopyToGolden {
	case vp8.CopyFromLast:
		r.Golden = r.Last
	case vp8.CopyFromOther:
		r.Golden = r.AltRef
	}
	if hdr.RefreshGolden {
		r.Golden = decoded
	}
	if hdr.RefreshAltRef {
		r.AltRef = decoded
	}
	if hdr.RefreshLast {
		r.Last = decoded
	}
}

// State is everything a decoder carries between frames. Rasters are shared by
// pointer; copying a State never copies pixels.
type State struct {
	Probabilities     vp8.ProbabilityTables
	Segmentation      Segmentation
	FilterAdjustments FilterAdjustments
	References        References
	// Continuation is the most recently displayed raster, the common baseline
	// for continuation frames built across decoders.
	Continuation *raster.Raster
}

func initialState(width, height uint16) State {
	blank := raster.Blank(int(width), int(height))
	return State{
		Probabilities: vp8.DefaultProbabilities(),
		Segmentation:  defaultSegmentation(),
		References:    References{Last: blank, Golden: blank, AltRef: blank},
		Continuation:  blank,
	}
}

// advance returns the state after decoding a frame with header hdr into
// decoded.
func (s State) advance(hdr *vp8.FrameHeader, decoded *raster.Raster) State {
	next := s
	key := hdr.Tag.KeyFrame

	switch {
	case hdr.RefreshEntropyProbs:
		next.Probabilities = hdr.Probabilities
	case key:
		next.Probabilities = vp8.DefaultProbabilities()
	}

	if key {
		next.Segmentation = defaultSegmentation()
		next.FilterAdjustments = FilterAdjustments{}
	}
	next.Segmentation.update(&hdr.Segment)
	next.FilterAdjustments.update(&hdr.Filter)
	next.References.update(hdr, decoded)

	if hdr.Tag.ShowFrame {
		next.Continuation = decoded
	}
	return next
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

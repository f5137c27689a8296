package vp8

// ProbabilityTables is the persistent entropy context of a VP8 decoder: the
// token, mode and motion vector probabilities carried from frame to frame.
type ProbabilityTables struct {
	Coeff  [BlockTypes][CoeffBands][PrevCoeffContexts][EntropyNodes]uint8
	YMode  [YModeProbCount]uint8
	UVMode [UVModeProbCount]uint8
	MV     [2][MVProbCount]uint8
}

// DefaultProbabilities returns the tables a key frame starts from.
func DefaultProbabilities() ProbabilityTables {
	return ProbabilityTables{
		Coeff:  DefaultCoeffProbs,
		YMode:  DefaultYModeProbs,
		UVMode: DefaultUVModeProbs,
		MV:     DefaultMVProbs,
	}
}

// ProbabilityTableSize is the number of bytes produced by Bytes.
const ProbabilityTableSize = BlockTypes*CoeffBands*PrevCoeffContexts*EntropyNodes +
	YModeProbCount + UVModeProbCount + 2*MVProbCount

// Bytes flattens the tables in a fixed order.
func (p *ProbabilityTables) Bytes() []byte {
	out := make([]byte, 0, ProbabilityTableSize)
	p.Each(func(v *uint8) { out = append(out, *v) })
	return out
}

// Each visits every probability in the order used by Bytes.
func (p *ProbabilityTables) Each(fn func(*uint8)) {
	for i := range p.Coeff {
		for j := range p.Coeff[i] {
			for k := range p.Coeff[i][j] {
				for l := range p.Coeff[i][j][k] {
					fn(&p.Coeff[i][j][k][l])
				}
			}
		}
	}
	for i := range p.YMode {
		fn(&p.YMode[i])
	}
	for i := range p.UVMode {
		fn(&p.UVMode[i])
	}
	for i := range p.MV {
		for j := range p.MV[i] {
			fn(&p.MV[i][j])
		}
	}
}

// Zip visits paired entries of p and other in the order used by Bytes.
func (p *ProbabilityTables) Zip(other *ProbabilityTables, fn func(dst *uint8, src uint8)) {
	src := other.Bytes()
	i := 0
	p.Each(func(v *uint8) {
		fn(v, src[i])
		i++
	})
}

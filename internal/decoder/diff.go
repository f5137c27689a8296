package decoder

import (
	"fmt"

	"alfalfa/internal/raster"
	"alfalfa/internal/vp8"
)

// Origin tells whether a continuation sub-delta was computed for the diff it
// sits in or carried over from an earlier one.
type Origin uint8

const (
	// Fresh sub-deltas were computed together with the rest of the diff.
	Fresh Origin = iota
	// Carried sub-deltas were spliced in from an older diff and may be stale.
	Carried
)

func (o Origin) String() string {
	switch o {
	case Fresh:
		return "fresh"
	case Carried:
		return "carried"
	default:
		return fmt.Sprintf("origin(%d)", uint8(o))
	}
}

// ContinuationDiff is the continuation raster part of a Diff.
type ContinuationDiff struct {
	// Changed is false when both states shared a continuation raster.
	Changed bool
	// Raster replaces the receiver's continuation raster when Changed is set.
	Raster *raster.Raster
	Origin Origin
}

// Diff turns one decoder state into another. A diff computed as a.Subtract(b)
// moves b to a when applied. Nil fields mean the component already matched.
type Diff struct {
	Width  uint16
	Height uint16

	// Base and Result are the fingerprints before and after application.
	Base   Fingerprint
	Result Fingerprint

	// Probabilities holds per-entry deltas modulo 256.
	Probabilities     vp8.ProbabilityTables
	Segmentation      *Segmentation
	FilterAdjustments *FilterAdjustments

	Last   *raster.Raster
	Golden *raster.Raster
	AltRef *raster.Raster

	Continuation ContinuationDiff
}

// Exact reports whether every field of the diff was computed fresh.
func (d Diff) Exact() bool {
	return d.Continuation.Origin == Fresh
}

// IsIdentity reports whether applying the diff leaves a state unchanged.
func (d Diff) IsIdentity() bool {
	if d.Segmentation != nil || d.FilterAdjustments != nil {
		return false
	}
	if d.Last != nil || d.Golden != nil || d.AltRef != nil {
		return false
	}
	if d.Continuation.Changed {
		return false
	}
	var zero vp8.ProbabilityTables
	return d.Probabilities == zero
}

// ProbabilityChanges counts the probability entries the diff alters.
func (d Diff) ProbabilityChanges() int {
	n := 0
	d.Probabilities.Each(func(v *uint8) {
		if *v != 0 {
			n++
		}
	})
	return n
}

// Carry returns the continuation sub-delta re-tagged as carried, ready to be
// spliced into a newer diff.
func (d Diff) Carry() ContinuationDiff {
	c := d.Continuation
	c.Origin = Carried
	return c
}

func subtract(width, height uint16, a, b *State) Diff {
	d := Diff{
		Width:         width,
		Height:        height,
		Base:          fingerprintState(width, height, b),
		Result:        fingerprintState(width, height, a),
		Probabilities: a.Probabilities,
	}
	d.Probabilities.Zip(&b.Probabilities, func(dst *uint8, src uint8) {
		*dst -= src
	})

	if a.Segmentation != b.Segmentation {
		seg := a.Segmentation
		d.Segmentation = &seg
	}
	if a.FilterAdjustments != b.FilterAdjustments {
		adj := a.FilterAdjustments
		d.FilterAdjustments = &adj
	}

	d.Last = changedRaster(a.References.Last, b.References.Last)
	d.Golden = changedRaster(a.References.Golden, b.References.Golden)
	d.AltRef = changedRaster(a.References.AltRef, b.References.AltRef)

	if !a.Continuation.Equal(b.Continuation) {
		d.Continuation = ContinuationDiff{Changed: true, Raster: a.Continuation, Origin: Fresh}
	}
	return d
}

func changedRaster(target, base *raster.Raster) *raster.Raster {
	if target.Equal(base) {
		return nil
	}
	return target
}

func (d Diff) applyTo(s State) State {
	next := s
	next.Probabilities.Zip(&d.Probabilities, func(dst *uint8, delta uint8) {
		*dst += delta
	})
	if d.Segmentation != nil {
		next.Segmentation = *d.Segmentation
	}
	if d.FilterAdjustments != nil {
		next.FilterAdjustments = *d.FilterAdjustments
	}
	if d.Last != nil {
		next.References.Last = d.Last
	}
	if d.Golden != nil {
		next.References.Golden = d.Golden
	}
	if d.AltRef != nil {
		next.References.AltRef = d.AltRef
	}
	if d.Continuation.Changed {
		next.Continuation = d.Continuation.Raster
	}
	return next
}

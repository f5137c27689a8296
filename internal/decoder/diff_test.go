package decoder_test

import (
	"errors"
	"testing"

	"alfalfa/internal/decoder"
	"alfalfa/internal/testsupport"
	"alfalfa/internal/vp8"
)

// divergent returns two decoders that share a key frame and then differ in
// every state component.
func divergent(t *testing.T) (*decoder.Decoder, *decoder.Decoder) {
	t.Helper()
	a := testsupport.NewDecoder(16, 16)
	b := testsupport.NewDecoder(16, 16)
	key := testsupport.KeyFrame(16, 16, 1)
	mustDecode(t, a, key)
	mustDecode(t, b, key)

	spec := testsupport.InterFrameSpec(2)
	spec.RefreshGolden = true
	spec.CoeffUpdates = map[testsupport.CoeffIndex]uint8{{0, 0, 0, 0}: 3, {2, 3, 1, 4}: 200}
	spec.MVUpdates = map[testsupport.MVIndex]uint8{{1, 2}: 8}
	spec.Segment = vp8.SegmentHeader{Enabled: true, UpdateData: true, Quantizer: [vp8.MaxSegments]int8{-5}}
	spec.Filter = vp8.FilterHeader{
		DeltasEnabled: true,
		UpdateDeltas:  true,
		ModeDeltas:    [vp8.ModeLFDeltas]int8{0, 0, 0, 9},
		ModeDeltaMask: [vp8.ModeLFDeltas]bool{false, false, false, true},
	}
	mustDecode(t, a, testsupport.BuildFrame(spec))

	other := testsupport.InterFrameSpec(7)
	other.RefreshAltRef = true
	other.YModeProbs = &[vp8.YModeProbCount]uint8{250, 1, 2, 3}
	mustDecode(t, b, testsupport.BuildFrame(other))
	mustDecode(t, b, testsupport.InterFrame(8))
	return a, b
}

func TestSubtractApplyLaw(t *testing.T) {
	tests := []struct {
		name string
		swap bool
	}{
		{name: "a minus b"},
		{name: "b minus a", swap: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target, base := divergent(t)
			if tc.swap {
				target, base = base, target
			}
			diff, err := target.Subtract(base)
			if err != nil {
				t.Fatalf("Subtract: %v", err)
			}
			if diff.IsIdentity() {
				t.Fatal("divergent states should not produce an identity diff")
			}
			if diff.Base != base.Fingerprint() || diff.Result != target.Fingerprint() {
				t.Fatal("diff should record base and result fingerprints")
			}
			if err := base.Apply(diff); err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if !base.Equal(target) {
				t.Fatalf("apply(b, a-b) != a: %s vs %s", base.Fingerprint().Short(), target.Fingerprint().Short())
			}
			if !statesMatch(base.State(), target.State()) {
				t.Fatal("every state component should match after apply")
			}
		})
	}
}

func TestSubtractFieldsAreMinimal(t *testing.T) {
	a, b := divergent(t)
	diff, err := a.Subtract(b)
	if err != nil {
		t.Fatalf("Subtract: %v", err)
	}
	if diff.Segmentation == nil || diff.FilterAdjustments == nil {
		t.Fatal("changed segmentation and filter deltas should be carried")
	}
	if diff.ProbabilityChanges() == 0 {
		t.Fatal("expected probability deltas")
	}
	if !diff.Exact() || !diff.Continuation.Changed {
		t.Fatal("expected a fresh continuation change")
	}

	same, err := a.Subtract(a.Clone())
	if err != nil {
		t.Fatalf("Subtract: %v", err)
	}
	if !same.IsIdentity() {
		t.Fatalf("equal states should produce the identity diff: %+v", same)
	}
}

func TestProbabilityDeltaWrapsModulo256(t *testing.T) {
	a := testsupport.NewDecoder(16, 16)
	b := testsupport.NewDecoder(16, 16)
	high := testsupport.InterFrameSpec()
	high.CoeffUpdates = map[testsupport.CoeffIndex]uint8{{0, 1, 0, 0}: 255}
	low := testsupport.InterFrameSpec()
	low.CoeffUpdates = map[testsupport.CoeffIndex]uint8{{0, 1, 0, 0}: 1}
	mustDecode(t, a, testsupport.BuildFrame(low))
	mustDecode(t, b, testsupport.BuildFrame(high))

	diff, err := a.Subtract(b)
	if err != nil {
		t.Fatalf("Subtract: %v", err)
	}
	if got := diff.Probabilities.Coeff[0][1][0][0]; got != 2 {
		t.Fatalf("expected 1-255 to wrap to 2, got %d", got)
	}
	if err := b.Apply(diff); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := b.State().Probabilities.Coeff[0][1][0][0]; got != 1 {
		t.Fatalf("expected 1 after apply, got %d", got)
	}
}

func TestSubtractDimensionMismatch(t *testing.T) {
	pairs := [][2][2]uint16{
		{{16, 16}, {32, 16}},
		{{16, 16}, {16, 32}},
		{{640, 480}, {320, 240}},
	}
	for _, p := range pairs {
		a := testsupport.NewDecoder(p[0][0], p[0][1])
		b := testsupport.NewDecoder(p[1][0], p[1][1])
		if _, err := a.Subtract(b); !errors.Is(err, decoder.ErrDimensionMismatch) {
			t.Fatalf("%v: expected ErrDimensionMismatch, got %v", p, err)
		}
		if _, err := b.Subtract(a); !errors.Is(err, decoder.ErrDimensionMismatch) {
			t.Fatalf("%v reversed: expected ErrDimensionMismatch, got %v", p, err)
		}
	}
}

func TestApplyChecksBase(t *testing.T) {
	a, b := divergent(t)
	diff, err := a.Subtract(b)
	if err != nil {
		t.Fatalf("Subtract: %v", err)
	}
	if err := a.Apply(diff); !errors.Is(err, decoder.ErrDiffBaseMismatch) {
		t.Fatalf("expected ErrDiffBaseMismatch, got %v", err)
	}
	small := testsupport.NewDecoder(8, 8)
	if err := small.Apply(diff); !errors.Is(err, decoder.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSyncContinuationRaster(t *testing.T) {
	a, b := divergent(t)
	before := a.Fingerprint()
	a.SyncContinuationRaster(b)
	if a.ContinuationRaster() != b.ContinuationRaster() {
		t.Fatal("sync should share the other decoder's continuation raster")
	}
	if a.Fingerprint() != before {
		t.Fatal("sync must not change the fingerprint")
	}

	diff, err := a.Subtract(b)
	if err != nil {
		t.Fatalf("Subtract: %v", err)
	}
	if diff.Continuation.Changed {
		t.Fatal("synced decoders should have no continuation delta")
	}
}

func TestCarryTagsContinuation(t *testing.T) {
	a, b := divergent(t)
	diff, err := a.Subtract(b)
	if err != nil {
		t.Fatalf("Subtract: %v", err)
	}
	carried := diff.Carry()
	if carried.Origin != decoder.Carried {
		t.Fatalf("expected carried origin, got %s", carried.Origin)
	}
	if carried.Raster != diff.Continuation.Raster || carried.Changed != diff.Continuation.Changed {
		t.Fatal("carry must keep the sub-delta contents")
	}
	if diff.Continuation.Origin != decoder.Fresh {
		t.Fatal("carry must not modify the source diff")
	}
}

func TestFingerprintText(t *testing.T) {
	fp := testsupport.NewDecoder(16, 16).Fingerprint()
	text, err := fp.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var parsed decoder.Fingerprint
	if err := parsed.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if parsed != fp {
		t.Fatal("text form should parse back to the same fingerprint")
	}
	if _, err := decoder.ParseFingerprint("abcd"); err == nil {
		t.Fatal("expected short fingerprint to fail")
	}
	if _, err := decoder.ParseFingerprint("zz"); err == nil {
		t.Fatal("expected invalid hex to fail")
	}
}

func statesMatch(a, b decoder.State) bool {
	if a.Probabilities != b.Probabilities || a.Segmentation != b.Segmentation || a.FilterAdjustments != b.FilterAdjustments {
		return false
	}
	return a.References.Last.Equal(b.References.Last) &&
		a.References.Golden.Equal(b.References.Golden) &&
		a.References.AltRef.Equal(b.References.AltRef) &&
		a.Continuation.Equal(b.Continuation)
}

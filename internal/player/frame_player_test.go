package player_test

import (
	"errors"
	"testing"

	"alfalfa/internal/decoder"
	"alfalfa/internal/frame"
	"alfalfa/internal/player"
	"alfalfa/internal/testsupport"
)

func newPlayer(width, height uint16) *player.FramePlayer {
	return player.NewFramePlayer(width, height, player.WithReconstructor(&testsupport.ScriptedReconstructor{}))
}

func mustDecode(t *testing.T, p *player.FramePlayer, chunk []byte) {
	t.Helper()
	if _, err := p.Decode(chunk); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}

// serialize builds the serialized frame that takes p's current state through chunk.
func serialize(t *testing.T, p *player.FramePlayer, chunk []byte) frame.SerializedFrame {
	t.Helper()
	next := p.Clone()
	mustDecode(t, next, chunk)
	return frame.New(chunk, p.Fingerprint(), next.Fingerprint())
}

func expectViolation(t *testing.T, check string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		v, ok := r.(*player.ContractViolation)
		if !ok {
			t.Fatalf("expected *ContractViolation panic, got %v", r)
		}
		if v.Check != check {
			t.Fatalf("expected %s violation, got %s", check, v.Check)
		}
		if v.Error() == "" {
			t.Fatal("violation should describe itself")
		}
	}()
	fn()
}

func TestIdenticalPlayersStayEqual(t *testing.T) {
	p1 := newPlayer(16, 16)
	p2 := newPlayer(16, 16)
	chunks := [][]byte{
		testsupport.KeyFrame(16, 16, 1),
		testsupport.InterFrame(2),
		testsupport.InterFrame(3),
		testsupport.KeyFrame(16, 16, 4),
	}
	for i, chunk := range chunks {
		mustDecode(t, p1, chunk)
		mustDecode(t, p2, chunk)
		if !p1.Equal(p2) {
			t.Fatalf("step %d: players diverged", i)
		}
		diff, err := p1.DecoderDifference(p2)
		if err != nil {
			t.Fatalf("step %d: DecoderDifference: %v", i, err)
		}
		before := p2.Fingerprint()
		if err := p2.ApplyDifference(diff); err != nil {
			t.Fatalf("step %d: ApplyDifference: %v", i, err)
		}
		if p2.Fingerprint() != before {
			t.Fatalf("step %d: identity diff changed the state", i)
		}
	}
}

func TestDecoderDifferenceLaw(t *testing.T) {
	build := func() (*player.FramePlayer, *player.FramePlayer) {
		a, b := newPlayer(16, 16), newPlayer(16, 16)
		mustDecode(t, a, testsupport.KeyFrame(16, 16, 1))
		mustDecode(t, a, testsupport.InterFrame(2))
		mustDecode(t, b, testsupport.KeyFrame(16, 16, 5))
		return a, b
	}

	a, b := build()
	diff, err := a.DecoderDifference(b)
	if err != nil {
		t.Fatalf("DecoderDifference: %v", err)
	}
	if err := b.ApplyDifference(diff); err != nil {
		t.Fatalf("ApplyDifference: %v", err)
	}
	if !b.Equal(a) || b.ExampleRaster() != a.ExampleRaster() {
		t.Fatal("apply(b, a-b) should reproduce a")
	}

	a, b = build()
	diff, err = b.DecoderDifference(a)
	if err != nil {
		t.Fatalf("DecoderDifference: %v", err)
	}
	if err := a.ApplyDifference(diff); err != nil {
		t.Fatalf("ApplyDifference: %v", err)
	}
	if !a.Equal(b) {
		t.Fatal("apply(a, b-a) should reproduce b")
	}
}

func TestDecoderDifferenceDimensionMismatch(t *testing.T) {
	sizes := [][2]uint16{{16, 16}, {32, 16}, {16, 32}, {64, 48}}
	for i, x := range sizes {
		for j, y := range sizes {
			if i == j {
				continue
			}
			_, err := newPlayer(x[0], x[1]).DecoderDifference(newPlayer(y[0], y[1]))
			if !errors.Is(err, player.ErrDimensionMismatch) {
				t.Fatalf("%v vs %v: expected ErrDimensionMismatch, got %v", x, y, err)
			}
		}
	}
}

func TestCanDecodeMatchesSourceFingerprint(t *testing.T) {
	p := newPlayer(16, 16)
	mustDecode(t, p, testsupport.KeyFrame(16, 16, 1))

	other := newPlayer(16, 16)
	frames := []frame.SerializedFrame{
		frame.New(nil, other.Fingerprint(), p.Fingerprint()),
		frame.New(nil, p.Fingerprint(), other.Fingerprint()),
		frame.New(nil, decoder.Fingerprint{}, decoder.Fingerprint{}),
	}
	for i, f := range frames {
		if got, want := p.CanDecode(f), f.Source == p.Fingerprint(); got != want {
			t.Fatalf("frame %d: CanDecode = %v, want %v", i, got, want)
		}
	}

	idx, ok := p.SelectDecodable(frames)
	if !ok || idx != 1 {
		t.Fatalf("SelectDecodable = %d, %v", idx, ok)
	}
	if _, ok := p.SelectDecodable(frames[2:]); ok {
		t.Fatal("expected no decodable frame")
	}
}

func TestDecodeSerialized(t *testing.T) {
	p := newPlayer(16, 16)
	mustDecode(t, p, testsupport.KeyFrame(16, 16, 1))

	f := serialize(t, p, testsupport.InterFrame(2))
	r, err := p.DecodeSerialized(f)
	if err != nil {
		t.Fatalf("DecodeSerialized: %v", err)
	}
	if r == nil || p.Fingerprint() != f.Target {
		t.Fatal("expected a shown raster and the promised target state")
	}
}

func TestDecodeSerializedContractViolations(t *testing.T) {
	p := newPlayer(16, 16)
	mustDecode(t, p, testsupport.KeyFrame(16, 16, 1))

	t.Run("source", func(t *testing.T) {
		f := serialize(t, p, testsupport.InterFrame(2))
		f.Source = decoder.Fingerprint{1}
		before := p.Fingerprint()
		expectViolation(t, "source", func() { _, _ = p.DecodeSerialized(f) })
		if p.Fingerprint() != before {
			t.Fatal("source violation must not decode")
		}
	})

	t.Run("target", func(t *testing.T) {
		f := serialize(t, p, testsupport.InterFrame(3))
		f.Target = decoder.Fingerprint{2}
		expectViolation(t, "target", func() { _, _ = p.DecodeSerialized(f) })
	})
}

func TestDecodeSerializedReturnsEngineErrors(t *testing.T) {
	p := newPlayer(16, 16)
	f := frame.New([]byte{0xff}, p.Fingerprint(), p.Fingerprint())
	if _, err := p.DecodeSerialized(f); err == nil {
		t.Fatal("expected malformed chunk error")
	}
}

func TestUpdateDifferenceCarriesContinuation(t *testing.T) {
	a, b := newPlayer(16, 16), newPlayer(16, 16)
	mustDecode(t, a, testsupport.KeyFrame(16, 16, 1))
	mustDecode(t, b, testsupport.KeyFrame(16, 16, 2))

	diff, err := a.DecoderDifference(b)
	if err != nil {
		t.Fatalf("DecoderDifference: %v", err)
	}
	original := diff.Continuation

	others := []*player.FramePlayer{b, newPlayer(16, 16), a.Clone()}
	mustDecode(t, others[1], testsupport.KeyFrame(16, 16, 9))
	for i, other := range others {
		d := diff
		if err := a.UpdateDifference(&d, other); err != nil {
			t.Fatalf("other %d: UpdateDifference: %v", i, err)
		}
		if d.Continuation.Raster != original.Raster || d.Continuation.Changed != original.Changed {
			t.Fatalf("other %d: continuation sub-delta was recomputed", i)
		}
		if d.Continuation.Origin != decoder.Carried || d.Exact() {
			t.Fatalf("other %d: carried continuation should be tagged", i)
		}
		if d.Base != other.Fingerprint() {
			t.Fatalf("other %d: non-continuation fields should be fresh", i)
		}
	}

	d := diff
	if err := a.UpdateDifference(&d, newPlayer(32, 32)); !errors.Is(err, player.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSyncContinuationRaster(t *testing.T) {
	a, b := newPlayer(16, 16), newPlayer(16, 16)
	mustDecode(t, a, testsupport.KeyFrame(16, 16, 1))
	mustDecode(t, b, testsupport.KeyFrame(16, 16, 2))

	before := a.Fingerprint()
	a.SyncContinuationRaster(b)
	if a.Fingerprint() != before {
		t.Fatal("sync must leave the fingerprint alone")
	}
	diff, err := a.DecoderDifference(b)
	if err != nil {
		t.Fatalf("DecoderDifference: %v", err)
	}
	if diff.Continuation.Changed {
		t.Fatal("synced players should have no continuation delta")
	}
}

func TestStringIsFingerprint(t *testing.T) {
	p := newPlayer(16, 16)
	if p.String() != p.Fingerprint().String() {
		t.Fatalf("unexpected String %q", p.String())
	}
	if p.Width() != 16 || p.Height() != 16 {
		t.Fatalf("unexpected size %dx%d", p.Width(), p.Height())
	}
}

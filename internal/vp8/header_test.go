package vp8_test

import (
	"errors"
	"testing"

	"alfalfa/internal/testsupport"
	"alfalfa/internal/vp8"
)

func parse(t *testing.T, chunk []byte, previous vp8.ProbabilityTables) vp8.FrameHeader {
	t.Helper()
	uc, err := vp8.ParseUncompressedChunk(chunk)
	if err != nil {
		t.Fatalf("ParseUncompressedChunk: %v", err)
	}
	hdr, err := vp8.ParseFrameHeader(uc, previous)
	if err != nil {
		t.Fatalf("ParseFrameHeader: %v", err)
	}
	return hdr
}

func TestParseFrameTag(t *testing.T) {
	tests := []struct {
		name    string
		chunk   []byte
		want    vp8.FrameTag
		wantErr error
	}{
		{
			name:  "shown key frame",
			chunk: []byte{0x50, 0x02, 0x00},
			want:  vp8.FrameTag{KeyFrame: true, ShowFrame: true, FirstPartitionSize: 0x12},
		},
		{
			name:  "hidden inter frame",
			chunk: []byte{0x23, 0x00, 0x00},
			want:  vp8.FrameTag{Version: 1, FirstPartitionSize: 1},
		},
		{name: "short", chunk: []byte{0x00, 0x00}, wantErr: vp8.ErrMalformedChunk},
		{name: "reserved version", chunk: []byte{0x08, 0x00, 0x00}, wantErr: vp8.ErrUnsupportedVersion},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := vp8.ParseFrameTag(tc.chunk)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestIsKeyFrame(t *testing.T) {
	key, err := vp8.IsKeyFrame(testsupport.KeyFrame(16, 16))
	if err != nil || !key {
		t.Fatalf("expected key frame, got %v (%v)", key, err)
	}
	key, err = vp8.IsKeyFrame(testsupport.InterFrame())
	if err != nil || key {
		t.Fatalf("expected inter frame, got %v (%v)", key, err)
	}
	if _, err := vp8.IsKeyFrame(nil); !errors.Is(err, vp8.ErrMalformedChunk) {
		t.Fatalf("expected malformed chunk for empty input, got %v", err)
	}
}

func TestParseUncompressedChunkKeyFrame(t *testing.T) {
	chunk := testsupport.KeyFrame(320, 240, 0xaa, 0xbb)
	uc, err := vp8.ParseUncompressedChunk(chunk)
	if err != nil {
		t.Fatalf("ParseUncompressedChunk: %v", err)
	}
	if uc.Key.Width != 320 || uc.Key.Height != 240 {
		t.Fatalf("unexpected size %dx%d", uc.Key.Width, uc.Key.Height)
	}
	if int(uc.Tag.FirstPartitionSize) != len(uc.FirstPartition) {
		t.Fatalf("first partition length %d, tag says %d", len(uc.FirstPartition), uc.Tag.FirstPartitionSize)
	}
	if string(uc.Rest) != "\xaa\xbb" {
		t.Fatalf("unexpected payload %x", uc.Rest)
	}
}

func TestParseUncompressedChunkRejectsBadFraming(t *testing.T) {
	good := testsupport.KeyFrame(16, 16)

	badStart := append([]byte(nil), good...)
	badStart[3] = 0x00

	zeroWidth := append([]byte(nil), good...)
	zeroWidth[6], zeroWidth[7] = 0, 0

	oversized := append([]byte(nil), good...)
	oversized[2] = 0xff

	tests := []struct {
		name  string
		chunk []byte
	}{
		{name: "start code", chunk: badStart},
		{name: "zero width", chunk: zeroWidth},
		{name: "partition overflow", chunk: oversized},
		{name: "truncated key header", chunk: good[:6]},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := vp8.ParseUncompressedChunk(tc.chunk); !errors.Is(err, vp8.ErrMalformedChunk) {
				t.Fatalf("expected ErrMalformedChunk, got %v", err)
			}
		})
	}
}

func TestParseFrameHeaderKeyFrameFields(t *testing.T) {
	spec := testsupport.KeyFrameSpec(64, 48)
	spec.ColorSpace = 1
	spec.PartitionsLog2 = 2
	spec.Quant = vp8.QuantIndices{YAC: 100, YDCDelta: -3, UVACDelta: 7}
	spec.Segment = vp8.SegmentHeader{
		Enabled:       true,
		UpdateMap:     true,
		UpdateData:    true,
		AbsoluteDelta: true,
		Quantizer:     [vp8.MaxSegments]int8{10, -20, 0, 127},
		FilterLevel:   [vp8.MaxSegments]int8{0, 5, -63, 1},
		TreeProbs:     [vp8.SegmentTreeProbs]uint8{1, 255, 128},
	}
	spec.Filter = vp8.FilterHeader{
		Level:         40,
		Sharpness:     3,
		DeltasEnabled: true,
		UpdateDeltas:  true,
		RefDeltas:     [vp8.RefLFDeltas]int8{2, 0, -2, -2},
		RefDeltaMask:  [vp8.RefLFDeltas]bool{true, true, true, false},
		ModeDeltas:    [vp8.ModeLFDeltas]int8{4, -2, 2, 4},
		ModeDeltaMask: [vp8.ModeLFDeltas]bool{true, false, true, true},
	}
	spec.SkipEnabled = true
	spec.ProbSkipFalse = 200
	spec.CoeffUpdates = map[testsupport.CoeffIndex]uint8{{0, 1, 0, 0}: 17, {3, 7, 2, 10}: 250}

	var previous vp8.ProbabilityTables
	hdr := parse(t, testsupport.BuildFrame(spec), previous)

	if hdr.ColorSpace != 1 || hdr.Partitions != 4 {
		t.Fatalf("unexpected color space %d / partitions %d", hdr.ColorSpace, hdr.Partitions)
	}
	if hdr.Quant != spec.Quant {
		t.Fatalf("quant: got %+v, want %+v", hdr.Quant, spec.Quant)
	}
	if hdr.Segment != spec.Segment {
		t.Fatalf("segment: got %+v, want %+v", hdr.Segment, spec.Segment)
	}
	wantFilter := spec.Filter
	wantFilter.RefDeltas[3] = 0
	wantFilter.ModeDeltas[1] = 0
	if hdr.Filter != wantFilter {
		t.Fatalf("filter: got %+v, want %+v", hdr.Filter, wantFilter)
	}
	if !hdr.SkipEnabled || hdr.ProbSkipFalse != 200 {
		t.Fatalf("unexpected skip fields %v/%d", hdr.SkipEnabled, hdr.ProbSkipFalse)
	}
	if !hdr.RefreshGolden || !hdr.RefreshAltRef || !hdr.RefreshLast || !hdr.RefreshEntropyProbs {
		t.Fatal("key frames refresh every buffer")
	}

	want := vp8.DefaultProbabilities()
	want.Coeff[0][1][0][0] = 17
	want.Coeff[3][7][2][10] = 250
	if hdr.Probabilities != want {
		t.Fatal("key frame probabilities should be defaults plus updates, ignoring previous tables")
	}
}

func TestParseFrameHeaderInterFrameFields(t *testing.T) {
	previous := vp8.DefaultProbabilities()
	previous.YMode[0] = 9

	spec := testsupport.InterFrameSpec()
	spec.RefreshLast = false
	spec.RefreshEntropy = false
	spec.CopyToGolden = vp8.CopyFromLast
	spec.CopyToAltRef = vp8.CopyFromOther
	spec.SignBiasAltRef = true
	spec.ProbIntra, spec.ProbLast, spec.ProbGolden = 11, 22, 33
	spec.UVModeProbs = &[vp8.UVModeProbCount]uint8{1, 2, 3}
	spec.MVUpdates = map[testsupport.MVIndex]uint8{{0, 0}: 254, {1, 18}: 1}

	hdr := parse(t, testsupport.BuildFrame(spec), previous)

	if hdr.Tag.KeyFrame || !hdr.Tag.ShowFrame {
		t.Fatalf("unexpected tag %+v", hdr.Tag)
	}
	if hdr.RefreshGolden || hdr.RefreshAltRef || hdr.RefreshLast || hdr.RefreshEntropyProbs {
		t.Fatal("expected all refresh flags clear")
	}
	if hdr.CopyToGolden != vp8.CopyFromLast || hdr.CopyToAltRef != vp8.CopyFromOther {
		t.Fatalf("unexpected copy flags %d/%d", hdr.CopyToGolden, hdr.CopyToAltRef)
	}
	if hdr.SignBiasGolden || !hdr.SignBiasAltRef {
		t.Fatal("unexpected sign bias")
	}
	if hdr.ProbIntra != 11 || hdr.ProbLast != 22 || hdr.ProbGolden != 33 {
		t.Fatalf("unexpected reference probabilities %d/%d/%d", hdr.ProbIntra, hdr.ProbLast, hdr.ProbGolden)
	}

	want := previous
	want.UVMode = [vp8.UVModeProbCount]uint8{1, 2, 3}
	want.MV[0][0] = 254
	want.MV[1][18] = 1
	if hdr.Probabilities != want {
		t.Fatal("inter frame probabilities should be previous tables plus updates")
	}
}

func TestParseFrameHeaderErrors(t *testing.T) {
	t.Run("truncated", func(t *testing.T) {
		chunk := []byte{0x01, 0x00, 0x00}
		uc, err := vp8.ParseUncompressedChunk(chunk)
		if err != nil {
			t.Fatalf("ParseUncompressedChunk: %v", err)
		}
		if _, err := vp8.ParseFrameHeader(uc, vp8.DefaultProbabilities()); !errors.Is(err, vp8.ErrTruncatedHeader) {
			t.Fatalf("expected ErrTruncatedHeader, got %v", err)
		}
	})
	t.Run("copy flag", func(t *testing.T) {
		spec := testsupport.InterFrameSpec()
		spec.CopyToGolden = 3
		uc, err := vp8.ParseUncompressedChunk(testsupport.BuildFrame(spec))
		if err != nil {
			t.Fatalf("ParseUncompressedChunk: %v", err)
		}
		if _, err := vp8.ParseFrameHeader(uc, vp8.DefaultProbabilities()); !errors.Is(err, vp8.ErrMalformedChunk) {
			t.Fatalf("expected ErrMalformedChunk, got %v", err)
		}
	})
}

func TestDCTPartitions(t *testing.T) {
	rest := []byte{2, 0, 0, 1, 0, 0, 'a', 'a', 'b', 'c', 'c'}
	parts, err := vp8.DCTPartitions(rest, 3)
	if err != nil {
		t.Fatalf("DCTPartitions: %v", err)
	}
	got := []string{string(parts[0]), string(parts[1]), string(parts[2])}
	if got[0] != "aa" || got[1] != "b" || got[2] != "cc" {
		t.Fatalf("unexpected partitions %q", got)
	}

	if _, err := vp8.DCTPartitions([]byte{9, 0, 0, 'a'}, 2); !errors.Is(err, vp8.ErrMalformedChunk) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if _, err := vp8.DCTPartitions(nil, 0); !errors.Is(err, vp8.ErrMalformedChunk) {
		t.Fatalf("expected count error, got %v", err)
	}
}

func TestProbabilityTablesBytes(t *testing.T) {
	p := vp8.DefaultProbabilities()
	raw := p.Bytes()
	if len(raw) != vp8.ProbabilityTableSize {
		t.Fatalf("got %d bytes, want %d", len(raw), vp8.ProbabilityTableSize)
	}
	if raw[0] != p.Coeff[0][0][0][0] || raw[len(raw)-1] != p.MV[1][vp8.MVProbCount-1] {
		t.Fatal("unexpected flattening order")
	}
}

package player

import (
	"fmt"
	"log/slog"

	"alfalfa/internal/decoder"
	"alfalfa/internal/frame"
	"alfalfa/internal/logging"
	"alfalfa/internal/raster"
)

// ErrDimensionMismatch is returned when players of different sizes are diffed.
var ErrDimensionMismatch = decoder.ErrDimensionMismatch

// ContractViolation is the panic value raised by DecodeSerialized when a
// serialized frame does not connect the fingerprints it declares.
type ContractViolation struct {
	// Check is "source" or "target".
	Check    string
	Frame    string
	Expected decoder.Fingerprint
	Actual   decoder.Fingerprint
}

func (v *ContractViolation) Error() string {
	return fmt.Sprintf("serialized frame %s: %s fingerprint mismatch: expected %s, decoder at %s",
		v.Frame, v.Check, v.Expected.Short(), v.Actual.Short())
}

type settings struct {
	decoderOpts []decoder.Option
	logger      *slog.Logger
}

// Option configures players.
type Option func(*settings)

// WithReconstructor sets the pixel engine used by the player's decoder.
func WithReconstructor(r decoder.Reconstructor) Option {
	return func(s *settings) {
		s.decoderOpts = append(s.decoderOpts, decoder.WithReconstructor(r))
	}
}

// WithLogger sets the logger. Players log at debug level only.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func buildSettings(opts []Option) settings {
	s := settings{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	s.decoderOpts = append(s.decoderOpts, decoder.WithLogger(s.logger))
	return s
}

// FramePlayer decodes chunks against one decoder state of fixed dimensions and
// exposes the state algebra. A FramePlayer is not safe for concurrent use.
type FramePlayer struct {
	width  uint16
	height uint16
	dec    *decoder.Decoder
	logger *slog.Logger
}

// NewFramePlayer returns a player in the initial decoder state.
func NewFramePlayer(width, height uint16, opts ...Option) *FramePlayer {
	s := buildSettings(opts)
	return newFramePlayer(width, height, s)
}

func newFramePlayer(width, height uint16, s settings) *FramePlayer {
	logger := logging.NewComponentLogger(s.logger, "player")
	return &FramePlayer{
		width:  width,
		height: height,
		dec:    decoder.New(width, height, s.decoderOpts...),
		logger: logger,
	}
}

// Width returns the frame width.
func (p *FramePlayer) Width() uint16 { return p.width }

// Height returns the frame height.
func (p *FramePlayer) Height() uint16 { return p.height }

// Clone returns an independent player with the same state.
func (p *FramePlayer) Clone() *FramePlayer {
	c := *p
	c.dec = p.dec.Clone()
	return &c
}

// Decode feeds chunk to the decoder. It returns nil for frames that are not
// shown. Decoder errors are returned as is.
func (p *FramePlayer) Decode(chunk []byte) (*raster.Raster, error) {
	return p.dec.DecodeFrame(chunk)
}

// DecodeSerialized decodes f after checking that it applies to the current
// state, then checks that it produced the promised state. Either mismatch
// panics with a *ContractViolation; callers should consult CanDecode first.
func (p *FramePlayer) DecodeSerialized(f frame.SerializedFrame) (*raster.Raster, error) {
	if current := p.dec.Fingerprint(); !f.ValidateSource(current) {
		panic(&ContractViolation{Check: "source", Frame: f.Name(), Expected: f.Source, Actual: current})
	}

	r, err := p.Decode(f.Chunk)
	if err != nil {
		return nil, err
	}

	if current := p.dec.Fingerprint(); !f.ValidateTarget(current) {
		panic(&ContractViolation{Check: "target", Frame: f.Name(), Expected: f.Target, Actual: current})
	}
	return r, nil
}

// CanDecode reports whether f starts from the current state.
func (p *FramePlayer) CanDecode(f frame.SerializedFrame) bool {
	return f.ValidateSource(p.dec.Fingerprint())
}

// SelectDecodable returns the index of the first frame in candidates that can
// be decoded from the current state.
func (p *FramePlayer) SelectDecodable(candidates []frame.SerializedFrame) (int, bool) {
	current := p.dec.Fingerprint()
	for i, f := range candidates {
		if f.ValidateSource(current) {
			return i, true
		}
	}
	return -1, false
}

// DecoderDifference returns the diff that moves other's state to p's.
func (p *FramePlayer) DecoderDifference(other *FramePlayer) (decoder.Diff, error) {
	if p.width != other.width || p.height != other.height {
		return decoder.Diff{}, fmt.Errorf("decoder difference: %w: %dx%d vs %dx%d",
			ErrDimensionMismatch, p.width, p.height, other.width, other.height)
	}
	return p.dec.Subtract(other.dec)
}

// UpdateDifference replaces diff with a fresh DecoderDifference against other,
// except for the continuation part, which is carried over from the old diff and
// tagged decoder.Carried. Recomputing the continuation is skipped because many
// continuation frames are built off the same displayed raster.
func (p *FramePlayer) UpdateDifference(diff *decoder.Diff, other *FramePlayer) error {
	fresh, err := p.DecoderDifference(other)
	if err != nil {
		return err
	}
	fresh.Continuation = diff.Carry()
	*diff = fresh

	p.logger.Debug("diff updated with carried continuation",
		logging.String(logging.FieldFingerprint, fresh.Result.Short()),
		logging.Bool("continuation_changed", fresh.Continuation.Changed),
	)
	return nil
}

// ApplyDifference moves the state by diff.
func (p *FramePlayer) ApplyDifference(diff decoder.Diff) error {
	return p.dec.Apply(diff)
}

// SyncContinuationRaster shares other's continuation raster with p.
func (p *FramePlayer) SyncContinuationRaster(other *FramePlayer) {
	p.dec.SyncContinuationRaster(other.dec)
}

// ExampleRaster returns a representative raster of the current state.
func (p *FramePlayer) ExampleRaster() *raster.Raster {
	return p.dec.ExampleRaster()
}

// Fingerprint returns the current state fingerprint.
func (p *FramePlayer) Fingerprint() decoder.Fingerprint {
	return p.dec.Fingerprint()
}

// Equal reports whether both players hold states with the same fingerprint.
func (p *FramePlayer) Equal(other *FramePlayer) bool {
	return p.dec.Equal(other.dec)
}

// String returns the hex fingerprint.
func (p *FramePlayer) String() string {
	return p.dec.Fingerprint().String()
}

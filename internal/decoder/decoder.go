package decoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"alfalfa/internal/logging"
	"alfalfa/internal/raster"
	"alfalfa/internal/vp8"
)

var (
	// ErrDimensionMismatch is returned when two states of different sizes meet.
	ErrDimensionMismatch = errors.New("stream size mismatch")
	// ErrFrameSizeMismatch is returned for key frames whose size differs from the decoder's.
	ErrFrameSizeMismatch = errors.New("key frame size does not match decoder")
	// ErrDiffBaseMismatch is returned when a diff is applied to a state it was not computed against.
	ErrDiffBaseMismatch = errors.New("diff base does not match decoder state")
)

// Decoder owns one VP8 decoder state of fixed dimensions.
type Decoder struct {
	width  uint16
	height uint16
	state  State

	recon  Reconstructor
	logger *slog.Logger

	fingerprint Fingerprint
	hashed      bool
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithReconstructor replaces the pixel engine.
func WithReconstructor(r Reconstructor) Option {
	return func(d *Decoder) {
		if r != nil {
			d.recon = r
		}
	}
}

// WithLogger sets the logger used for per-frame debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New returns a decoder whose references all point at one blank raster.
func New(width, height uint16, opts ...Option) *Decoder {
	d := &Decoder{
		width:  width,
		height: height,
		state:  initialState(width, height),
		recon:  IntraReconstructor{},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Clone returns an independent decoder holding the same state. Rasters are
// shared, not copied.
func (d *Decoder) Clone() *Decoder {
	c := *d
	return &c
}

// Width returns the frame width.
func (d *Decoder) Width() uint16 { return d.width }

// Height returns the frame height.
func (d *Decoder) Height() uint16 { return d.height }

// State returns a copy of the current state. Rasters are shared.
func (d *Decoder) State() State { return d.state }

// DecodeFrame decodes chunk and advances the state. It returns nil for frames
// that are not meant to be shown. The state is left untouched on error.
func (d *Decoder) DecodeFrame(chunk []byte) (*raster.Raster, error) {
	uc, err := vp8.ParseUncompressedChunk(chunk)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if uc.Tag.KeyFrame && (uc.Key.Width != d.width || uc.Key.Height != d.height) {
		return nil, fmt.Errorf("decode frame: %w: got %dx%d, want %dx%d",
			ErrFrameSizeMismatch, uc.Key.Width, uc.Key.Height, d.width, d.height)
	}

	hdr, err := vp8.ParseFrameHeader(uc, d.state.Probabilities)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	frame := &Frame{Header: hdr, Chunk: uc, Data: chunk}
	decoded, err := d.recon.Reconstruct(frame, d.state.References)
	if err != nil {
		return nil, err
	}
	if decoded.Width() != int(d.width) || decoded.Height() != int(d.height) {
		return nil, fmt.Errorf("decode frame: %w: reconstructed %dx%d, want %dx%d",
			ErrFrameSizeMismatch, decoded.Width(), decoded.Height(), d.width, d.height)
	}

	d.setState(d.state.advance(&hdr, decoded))

	if d.logger.Enabled(context.Background(), slog.LevelDebug) {
		d.logger.Debug("decoded frame",
			logging.Bool("key_frame", uc.Tag.KeyFrame),
			logging.Bool("shown", uc.Tag.ShowFrame),
			logging.Int("bytes", len(chunk)),
			logging.String(logging.FieldFingerprint, d.Fingerprint().Short()),
		)
	}

	if !uc.Tag.ShowFrame {
		return nil, nil
	}
	return decoded, nil
}

// Fingerprint returns the content hash of the current state.
func (d *Decoder) Fingerprint() Fingerprint {
	if !d.hashed {
		d.fingerprint = fingerprintState(d.width, d.height, &d.state)
		d.hashed = true
	}
	return d.fingerprint
}

// Equal reports whether both decoders hold the same state content.
func (d *Decoder) Equal(other *Decoder) bool {
	return d.Fingerprint() == other.Fingerprint()
}

// Subtract returns the diff that turns other's state into d's.
func (d *Decoder) Subtract(other *Decoder) (Diff, error) {
	if d.width != other.width || d.height != other.height {
		return Diff{}, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, d.width, d.height, other.width, other.height)
	}
	return subtract(d.width, d.height, &d.state, &other.state), nil
}

// Apply moves the state by diff. The diff must have been computed against a
// state with the current fingerprint.
func (d *Decoder) Apply(diff Diff) error {
	if diff.Width != d.width || diff.Height != d.height {
		return fmt.Errorf("%w: diff is %dx%d, decoder is %dx%d", ErrDimensionMismatch, diff.Width, diff.Height, d.width, d.height)
	}
	if current := d.Fingerprint(); diff.Base != current {
		return fmt.Errorf("%w: diff base %s, decoder %s", ErrDiffBaseMismatch, diff.Base.Short(), current.Short())
	}
	d.setState(diff.applyTo(d.state))
	return nil
}

// SyncContinuationRaster points this decoder's continuation raster at other's.
// Nothing else changes, including the fingerprint.
func (d *Decoder) SyncContinuationRaster(other *Decoder) {
	d.state.Continuation = other.state.Continuation
}

// ContinuationRaster returns the current continuation baseline.
func (d *Decoder) ContinuationRaster() *raster.Raster {
	return d.state.Continuation
}

// ExampleRaster returns the last reference raster.
func (d *Decoder) ExampleRaster() *raster.Raster {
	return d.state.References.Last
}

func (d *Decoder) setState(s State) {
	d.state = s
	d.hashed = false
}

package player

import (
	"errors"
	"fmt"
	"io"

	"alfalfa/internal/ivf"
	"alfalfa/internal/logging"
	"alfalfa/internal/raster"
	"alfalfa/internal/vp8"
)

var (
	// ErrNotVP8 is returned when a container does not hold a VP8 stream.
	ErrNotVP8 = errors.New("not a VP8 file")
	// ErrHiddenFramesAtEOF is returned by Advance when the stream ends after
	// one or more frames without a shown frame among them.
	ErrHiddenFramesAtEOF = errors.New("hidden frames at end of file")
	// ErrNoFrameConsumed is returned by OriginalSize before any frame was read.
	ErrNoFrameConsumed = errors.New("no frame consumed yet")
)

// Container is an indexed sequence of compressed frames.
type Container interface {
	Width() uint16
	Height() uint16
	FourCC() string
	FrameCount() int
	Frame(i int) ([]byte, error)
}

// FilePlayer plays a container from its first key frame onwards. The cursor
// only moves forward.
type FilePlayer struct {
	*FramePlayer

	container Container
	closer    io.Closer

	cursor   int
	current  int
	lastSize int
}

// NewFilePlayer validates the codec tag and moves the cursor to the first key
// frame, or to the end of the stream when there is none. No frame is decoded.
func NewFilePlayer(c Container, opts ...Option) (*FilePlayer, error) {
	if c.FourCC() != ivf.FourCCVP8 {
		return nil, fmt.Errorf("%w: fourcc %q", ErrNotVP8, c.FourCC())
	}
	s := buildSettings(opts)
	p := &FilePlayer{
		FramePlayer: newFramePlayer(c.Width(), c.Height(), s),
		container:   c,
		current:     -1,
	}

	for ; p.cursor < c.FrameCount(); p.cursor++ {
		chunk, err := c.Frame(p.cursor)
		if err != nil {
			return nil, fmt.Errorf("scan for key frame: %w", err)
		}
		key, err := vp8.IsKeyFrame(chunk)
		if err != nil {
			return nil, fmt.Errorf("scan for key frame at %d: %w", p.cursor, err)
		}
		if key {
			break
		}
	}

	p.logger.Debug("file player ready",
		logging.Int(logging.FieldFrameIndex, p.cursor),
		logging.Int("frame_count", c.FrameCount()),
		logging.Int("width", int(c.Width())),
		logging.Int("height", int(c.Height())),
	)
	return p, nil
}

// OpenFilePlayer opens an IVF file and plays it. Close releases the file.
func OpenFilePlayer(path string, opts ...Option) (*FilePlayer, error) {
	r, err := ivf.Open(path)
	if err != nil {
		return nil, err
	}
	p, err := NewFilePlayer(r, opts...)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.closer = r
	return p, nil
}

// Close releases the file opened by OpenFilePlayer.
func (p *FilePlayer) Close() error {
	if p.closer == nil {
		return nil
	}
	err := p.closer.Close()
	p.closer = nil
	return err
}

// GetNextFrame returns the chunk at the cursor and moves the cursor past it.
// It returns io.EOF at the end of the stream.
func (p *FilePlayer) GetNextFrame() ([]byte, error) {
	if p.EOF() {
		return nil, io.EOF
	}
	chunk, err := p.container.Frame(p.cursor)
	if err != nil {
		return nil, err
	}
	p.current = p.cursor
	p.lastSize = len(chunk)
	p.cursor++
	return chunk, nil
}

// Advance decodes frames until one is shown and returns its raster. At the
// end of the stream it returns io.EOF if no frame was left to read, and
// ErrHiddenFramesAtEOF if the remaining frames were all hidden.
func (p *FilePlayer) Advance() (*raster.Raster, error) {
	if p.EOF() {
		return nil, io.EOF
	}
	for !p.EOF() {
		chunk, err := p.GetNextFrame()
		if err != nil {
			return nil, err
		}
		r, err := p.Decode(chunk)
		if err != nil {
			return nil, err
		}
		if r != nil {
			p.logger.Debug("frame shown",
				logging.Int(logging.FieldFrameIndex, p.current),
				logging.Int(logging.FieldBytes, len(chunk)),
				logging.String(logging.FieldFingerprint, p.Fingerprint().Short()),
			)
			return r, nil
		}
	}
	return nil, ErrHiddenFramesAtEOF
}

// EOF reports whether the cursor reached the end of the stream.
func (p *FilePlayer) EOF() bool {
	return p.cursor == p.container.FrameCount()
}

// FrameIndex returns the cursor: the index GetNextFrame reads next.
func (p *FilePlayer) FrameIndex() int {
	return p.cursor
}

// CurrentFrame returns the index of the last frame read, or -1.
func (p *FilePlayer) CurrentFrame() int {
	return p.current
}

// OriginalSize returns the compressed size of the last frame read.
func (p *FilePlayer) OriginalSize() (int, error) {
	if p.current < 0 {
		return 0, ErrNoFrameConsumed
	}
	return p.lastSize, nil
}

// FrameCount returns the number of frames in the container.
func (p *FilePlayer) FrameCount() int {
	return p.container.FrameCount()
}

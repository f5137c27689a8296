package ivf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	// ErrNotIVF is returned when the file signature is not DKIF.
	ErrNotIVF = errors.New("not an IVF file")
	// ErrTruncated is returned when a frame header or payload runs past the end of the file.
	ErrTruncated = errors.New("truncated IVF file")
	// ErrFrameIndex is returned for frame indices outside the file.
	ErrFrameIndex = errors.New("frame index out of range")
)

const (
	// FileHeaderSize is the size of the IVF file header.
	FileHeaderSize = 32
	// FrameHeaderSize is the size of each per-frame header.
	FrameHeaderSize = 12

	signature = "DKIF"
)

// Header is the IVF file header.
type Header struct {
	Version    uint16
	FourCC     string
	Width      uint16
	Height     uint16
	Rate       uint32
	Scale      uint32
	FrameCount uint32
}

type frameEntry struct {
	offset    int64
	size      uint32
	timestamp uint64
}

// Reader indexes the frames of an IVF file. Payloads are read on demand.
type Reader struct {
	r      io.ReaderAt
	closer io.Closer
	header Header
	frames []frameEntry
}

// Open opens and indexes the IVF file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ivf: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat ivf: %w", err)
	}
	rd, err := NewReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rd.closer = f
	return rd, nil
}

// NewReader indexes size bytes of r. The frame count comes from the frame
// headers actually present rather than the file header.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	var raw [FileHeaderSize]byte
	if err := readFull(r, raw[:], 0); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: file header", ErrTruncated)
		}
		return nil, fmt.Errorf("read ivf header: %w", err)
	}
	if string(raw[0:4]) != signature {
		return nil, fmt.Errorf("%w: signature %q", ErrNotIVF, raw[0:4])
	}
	hdr := Header{
		Version:    binary.LittleEndian.Uint16(raw[4:6]),
		FourCC:     string(raw[8:12]),
		Width:      binary.LittleEndian.Uint16(raw[12:14]),
		Height:     binary.LittleEndian.Uint16(raw[14:16]),
		Rate:       binary.LittleEndian.Uint32(raw[16:20]),
		Scale:      binary.LittleEndian.Uint32(raw[20:24]),
		FrameCount: binary.LittleEndian.Uint32(raw[24:28]),
	}
	headerLen := int64(binary.LittleEndian.Uint16(raw[6:8]))
	if headerLen < FileHeaderSize {
		headerLen = FileHeaderSize
	}

	rd := &Reader{r: r, header: hdr}
	var fh [FrameHeaderSize]byte
	for off := headerLen; off < size; {
		if size-off < FrameHeaderSize {
			return nil, fmt.Errorf("%w: frame %d header at offset %d", ErrTruncated, len(rd.frames), off)
		}
		if err := readFull(r, fh[:], off); err != nil {
			return nil, fmt.Errorf("read frame %d header: %w", len(rd.frames), err)
		}
		entry := frameEntry{
			offset:    off + FrameHeaderSize,
			size:      binary.LittleEndian.Uint32(fh[0:4]),
			timestamp: binary.LittleEndian.Uint64(fh[4:12]),
		}
		if entry.offset+int64(entry.size) > size {
			return nil, fmt.Errorf("%w: frame %d of %d bytes at offset %d", ErrTruncated, len(rd.frames), entry.size, entry.offset)
		}
		rd.frames = append(rd.frames, entry)
		off = entry.offset + int64(entry.size)
	}
	return rd, nil
}

// Header returns the file header as written.
func (r *Reader) Header() Header { return r.header }

// FourCC returns the codec tag.
func (r *Reader) FourCC() string { return r.header.FourCC }

// Width returns the frame width.
func (r *Reader) Width() uint16 { return r.header.Width }

// Height returns the frame height.
func (r *Reader) Height() uint16 { return r.header.Height }

// FrameCount returns the number of frames present in the file.
func (r *Reader) FrameCount() int { return len(r.frames) }

// FrameSize returns the payload size of frame i.
func (r *Reader) FrameSize(i int) (int, error) {
	if i < 0 || i >= len(r.frames) {
		return 0, fmt.Errorf("%w: %d of %d", ErrFrameIndex, i, len(r.frames))
	}
	return int(r.frames[i].size), nil
}

// Timestamp returns the presentation timestamp of frame i.
func (r *Reader) Timestamp(i int) (uint64, error) {
	if i < 0 || i >= len(r.frames) {
		return 0, fmt.Errorf("%w: %d of %d", ErrFrameIndex, i, len(r.frames))
	}
	return r.frames[i].timestamp, nil
}

// Frame reads the payload of frame i.
func (r *Reader) Frame(i int) ([]byte, error) {
	if i < 0 || i >= len(r.frames) {
		return nil, fmt.Errorf("%w: %d of %d", ErrFrameIndex, i, len(r.frames))
	}
	e := r.frames[i]
	buf := make([]byte, e.size)
	if err := readFull(r.r, buf, e.offset); err != nil {
		return nil, fmt.Errorf("read frame %d: %w", i, err)
	}
	return buf, nil
}

// Close releases the file opened by Open. It is a no-op for readers built
// with NewReader.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// readFull reads len(buf) bytes at off. A short read is io.ErrUnexpectedEOF.
func readFull(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"alfalfa/internal/decoder"
)

// ErrInvalidEncoding is returned when a serialized frame cannot be decoded.
var ErrInvalidEncoding = errors.New("invalid serialized frame encoding")

// magic prefixes the binary form.
var magic = [4]byte{'A', 'S', 'F', '1'}

const headerSize = len(magic) + 2*decoder.FingerprintSize + 4

// MaxChunkSize bounds the chunk length accepted by ReadFrom and UnmarshalBinary.
const MaxChunkSize = 64 << 20

// SerializedFrame is a compressed frame together with the decoder fingerprints
// it moves between. Decoding Chunk against a state whose fingerprint is Source
// yields a state whose fingerprint is Target.
type SerializedFrame struct {
	Chunk  []byte
	Source decoder.Fingerprint
	Target decoder.Fingerprint
}

// New returns a serialized frame holding a private copy of chunk.
func New(chunk []byte, source, target decoder.Fingerprint) SerializedFrame {
	return SerializedFrame{
		Chunk:  append([]byte(nil), chunk...),
		Source: source,
		Target: target,
	}
}

// ValidateSource reports whether the frame applies to a decoder at fp.
func (f SerializedFrame) ValidateSource(fp decoder.Fingerprint) bool {
	return f.Source == fp
}

// ValidateTarget reports whether fp is the state the frame promises.
func (f SerializedFrame) ValidateTarget(fp decoder.Fingerprint) bool {
	return f.Target == fp
}

// Name identifies the frame by its endpoints.
func (f SerializedFrame) Name() string {
	return f.Source.String() + "#" + f.Target.String()
}

// Size returns the chunk length.
func (f SerializedFrame) Size() int {
	return len(f.Chunk)
}

// MarshalBinary implements encoding.BinaryMarshaler. The layout is the magic,
// source, target, a little-endian uint32 chunk length and the chunk.
func (f SerializedFrame) MarshalBinary() ([]byte, error) {
	if len(f.Chunk) > MaxChunkSize {
		return nil, fmt.Errorf("%w: chunk of %d bytes exceeds %d", ErrInvalidEncoding, len(f.Chunk), MaxChunkSize)
	}
	out := make([]byte, headerSize, headerSize+len(f.Chunk))
	f.putHeader(out)
	return append(out, f.Chunk...), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (f *SerializedFrame) UnmarshalBinary(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidEncoding, len(data))
	}
	source, target, n, err := parseHeader(data[:headerSize])
	if err != nil {
		return err
	}
	if len(data)-headerSize != n {
		return fmt.Errorf("%w: header declares %d chunk bytes, found %d", ErrInvalidEncoding, n, len(data)-headerSize)
	}
	*f = SerializedFrame{Chunk: append([]byte(nil), data[headerSize:]...), Source: source, Target: target}
	return nil
}

// WriteTo implements io.WriterTo.
func (f SerializedFrame) WriteTo(w io.Writer) (int64, error) {
	data, err := f.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// ReadFrom implements io.ReaderFrom. It consumes exactly one frame.
func (f *SerializedFrame) ReadFrom(r io.Reader) (int64, error) {
	var hdr [headerSize]byte
	read, err := io.ReadFull(r, hdr[:])
	if err != nil {
		return int64(read), err
	}
	source, target, n, err := parseHeader(hdr[:])
	if err != nil {
		return int64(read), err
	}
	chunk := make([]byte, n)
	m, err := io.ReadFull(r, chunk)
	total := int64(read + m)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return total, fmt.Errorf("read serialized frame chunk: %w", err)
	}
	*f = SerializedFrame{Chunk: chunk, Source: source, Target: target}
	return total, nil
}

func (f SerializedFrame) putHeader(out []byte) {
	copy(out, magic[:])
	off := len(magic)
	copy(out[off:], f.Source[:])
	off += decoder.FingerprintSize
	copy(out[off:], f.Target[:])
	off += decoder.FingerprintSize
	binary.LittleEndian.PutUint32(out[off:], uint32(len(f.Chunk)))
}

// parseHeader decodes a frame header without touching any receiver, so a
// failed decode leaves the destination frame as it was.
func parseHeader(hdr []byte) (source, target decoder.Fingerprint, n int, err error) {
	if [4]byte(hdr[:len(magic)]) != magic {
		return source, target, 0, fmt.Errorf("%w: bad magic %q", ErrInvalidEncoding, hdr[:len(magic)])
	}
	off := len(magic)
	copy(source[:], hdr[off:])
	off += decoder.FingerprintSize
	copy(target[:], hdr[off:])
	off += decoder.FingerprintSize
	size := binary.LittleEndian.Uint32(hdr[off:])
	if size > MaxChunkSize {
		return decoder.Fingerprint{}, decoder.Fingerprint{}, 0, fmt.Errorf("%w: chunk of %d bytes exceeds %d", ErrInvalidEncoding, size, MaxChunkSize)
	}
	return source, target, int(size), nil
}

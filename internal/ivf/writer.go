package ivf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// FourCCVP8 is the codec tag of VP8 streams.
const FourCCVP8 = "VP80"

// Writer appends frames to an IVF stream.
type Writer struct {
	w      io.Writer
	header Header
	count  uint32
}

// NewWriter writes the file header and returns a writer for the frames. An
// empty FourCC defaults to VP80 and a zero Rate or Scale defaults to 30/1.
func NewWriter(w io.Writer, hdr Header) (*Writer, error) {
	if hdr.FourCC == "" {
		hdr.FourCC = FourCCVP8
	}
	if len(hdr.FourCC) != 4 {
		return nil, fmt.Errorf("ivf fourcc %q must be four bytes", hdr.FourCC)
	}
	if hdr.Rate == 0 || hdr.Scale == 0 {
		hdr.Rate, hdr.Scale = 30, 1
	}
	wr := &Writer{w: w, header: hdr}
	if _, err := w.Write(encodeHeader(hdr)); err != nil {
		return nil, fmt.Errorf("write ivf header: %w", err)
	}
	return wr, nil
}

func encodeHeader(hdr Header) []byte {
	raw := make([]byte, FileHeaderSize)
	copy(raw[0:4], signature)
	binary.LittleEndian.PutUint16(raw[4:6], hdr.Version)
	binary.LittleEndian.PutUint16(raw[6:8], FileHeaderSize)
	copy(raw[8:12], hdr.FourCC)
	binary.LittleEndian.PutUint16(raw[12:14], hdr.Width)
	binary.LittleEndian.PutUint16(raw[14:16], hdr.Height)
	binary.LittleEndian.PutUint32(raw[16:20], hdr.Rate)
	binary.LittleEndian.PutUint32(raw[20:24], hdr.Scale)
	binary.LittleEndian.PutUint32(raw[24:28], hdr.FrameCount)
	return raw
}

// WriteFrame appends one frame with the given timestamp.
func (w *Writer) WriteFrame(timestamp uint64, chunk []byte) error {
	if uint64(len(chunk)) > math.MaxUint32 {
		return fmt.Errorf("ivf frame of %d bytes is too large", len(chunk))
	}
	var fh [FrameHeaderSize]byte
	binary.LittleEndian.PutUint32(fh[0:4], uint32(len(chunk)))
	binary.LittleEndian.PutUint64(fh[4:12], timestamp)
	if _, err := w.w.Write(fh[:]); err != nil {
		return fmt.Errorf("write frame %d header: %w", w.count, err)
	}
	if _, err := w.w.Write(chunk); err != nil {
		return fmt.Errorf("write frame %d: %w", w.count, err)
	}
	w.count++
	return nil
}

// Count returns the number of frames written so far.
func (w *Writer) Count() int { return int(w.count) }

// Close rewrites the frame count in the file header when the underlying
// writer can seek. It does not close the underlying writer.
func (w *Writer) Close() error {
	ws, ok := w.w.(io.WriteSeeker)
	if !ok {
		return nil
	}
	end, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("ivf close: %w", err)
	}
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], w.count)
	if _, err := ws.Seek(24, io.SeekStart); err != nil {
		return fmt.Errorf("ivf close: %w", err)
	}
	if _, err := ws.Write(count[:]); err != nil {
		return fmt.Errorf("ivf close: %w", err)
	}
	if _, err := ws.Seek(end, io.SeekStart); err != nil {
		return fmt.Errorf("ivf close: %w", err)
	}
	return nil
}

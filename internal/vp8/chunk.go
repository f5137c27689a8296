package vp8

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedChunk marks a chunk whose framing cannot be parsed.
	ErrMalformedChunk = errors.New("malformed vp8 chunk")
	// ErrUnsupportedVersion marks a frame tag with a reserved version number.
	ErrUnsupportedVersion = errors.New("unsupported vp8 version")
)

const (
	frameTagSize      = 3
	keyFrameInfoSize  = 7
	maxVersion        = 3
	startCode0        = 0x9d
	startCode1        = 0x01
	startCode2        = 0x2a
	dimensionMask     = 0x3fff
	scaleShift        = 14
	partitionSizeSize = 3
)

// FrameTag is the three-byte uncompressed prefix of every VP8 frame.
type FrameTag struct {
	KeyFrame           bool
	Version            uint8
	ShowFrame          bool
	FirstPartitionSize uint32
}

// KeyFrameInfo is the start code trailer carried by key frames only.
type KeyFrameInfo struct {
	Width      uint16
	Height     uint16
	HorizScale uint8
	VertScale  uint8
}

// UncompressedChunk splits a raw frame into its uncompressed header and the
// compressed partitions that follow it.
type UncompressedChunk struct {
	Tag            FrameTag
	Key            KeyFrameInfo
	FirstPartition []byte
	Rest           []byte
}

// ParseFrameTag decodes the three-byte frame tag.
func ParseFrameTag(chunk []byte) (FrameTag, error) {
	if len(chunk) < frameTagSize {
		return FrameTag{}, fmt.Errorf("%w: frame tag needs %d bytes, got %d", ErrMalformedChunk, frameTagSize, len(chunk))
	}
	bits := uint32(chunk[0]) | uint32(chunk[1])<<8 | uint32(chunk[2])<<16
	tag := FrameTag{
		KeyFrame:           bits&1 == 0,
		Version:            uint8((bits >> 1) & 7),
		ShowFrame:          (bits>>4)&1 == 1,
		FirstPartitionSize: bits >> 5,
	}
	if tag.Version > maxVersion {
		return FrameTag{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, tag.Version)
	}
	return tag, nil
}

// IsKeyFrame reports whether chunk starts a key frame.
func IsKeyFrame(chunk []byte) (bool, error) {
	tag, err := ParseFrameTag(chunk)
	if err != nil {
		return false, err
	}
	return tag.KeyFrame, nil
}

// ParseUncompressedChunk validates framing and locates the first partition.
func ParseUncompressedChunk(chunk []byte) (UncompressedChunk, error) {
	tag, err := ParseFrameTag(chunk)
	if err != nil {
		return UncompressedChunk{}, err
	}
	out := UncompressedChunk{Tag: tag}
	body := chunk[frameTagSize:]

	if tag.KeyFrame {
		if len(body) < keyFrameInfoSize {
			return UncompressedChunk{}, fmt.Errorf("%w: key frame header truncated", ErrMalformedChunk)
		}
		if body[0] != startCode0 || body[1] != startCode1 || body[2] != startCode2 {
			return UncompressedChunk{}, fmt.Errorf("%w: bad start code %x", ErrMalformedChunk, body[:3])
		}
		w := uint16(body[3]) | uint16(body[4])<<8
		h := uint16(body[5]) | uint16(body[6])<<8
		out.Key = KeyFrameInfo{
			Width:      w & dimensionMask,
			Height:     h & dimensionMask,
			HorizScale: uint8(w >> scaleShift),
			VertScale:  uint8(h >> scaleShift),
		}
		if out.Key.Width == 0 || out.Key.Height == 0 {
			return UncompressedChunk{}, fmt.Errorf("%w: zero frame dimension", ErrMalformedChunk)
		}
		body = body[keyFrameInfoSize:]
	}

	if uint64(tag.FirstPartitionSize) > uint64(len(body)) {
		return UncompressedChunk{}, fmt.Errorf("%w: first partition of %d bytes exceeds %d available",
			ErrMalformedChunk, tag.FirstPartitionSize, len(body))
	}
	out.FirstPartition = body[:tag.FirstPartitionSize]
	out.Rest = body[tag.FirstPartitionSize:]
	return out, nil
}

// DCTPartitions splits the bytes after the first partition into the count
// token partitions announced by the frame header.
func DCTPartitions(rest []byte, count int) ([][]byte, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: partition count %d", ErrMalformedChunk, count)
	}
	sizesLen := partitionSizeSize * (count - 1)
	if len(rest) < sizesLen {
		return nil, fmt.Errorf("%w: partition sizes truncated", ErrMalformedChunk)
	}
	sizes, data := rest[:sizesLen], rest[sizesLen:]
	parts := make([][]byte, count)
	for i := 0; i < count-1; i++ {
		p := sizes[i*partitionSizeSize:]
		size := int(p[0]) | int(p[1])<<8 | int(p[2])<<16
		if size > len(data) {
			return nil, fmt.Errorf("%w: partition %d of %d bytes exceeds %d available", ErrMalformedChunk, i, size, len(data))
		}
		parts[i], data = data[:size], data[size:]
	}
	parts[count-1] = data
	return parts, nil
}

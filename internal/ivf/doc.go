// Package ivf reads and writes IVF, the minimal container libvpx uses for raw
// VP8 streams: a 32-byte DKIF file header followed by frames, each prefixed
// with a 4-byte size and an 8-byte timestamp.
package ivf

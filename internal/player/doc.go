// Package player sequences VP8 decoding.
//
// FramePlayer wraps one decoder and adds the fingerprint-checked decode of
// serialized frames together with the diff bookkeeping used to switch a client
// between encodings. FilePlayer drives a FramePlayer over a container.
package player

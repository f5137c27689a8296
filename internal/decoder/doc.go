// Package decoder holds the VP8 decoder state and the algebra over it.
//
// A Decoder carries probability tables, segmentation, loop filter deltas, the
// three reference rasters and a continuation raster. States can be hashed into
// a Fingerprint, subtracted into a Diff and moved by applying one. Pixel
// reconstruction sits behind the Reconstructor interface so that state
// bookkeeping does not depend on a particular prediction engine.
package decoder

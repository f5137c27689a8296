// Package vp8 parses the parts of a VP8 frame that drive decoder state.
//
// It decodes the uncompressed frame tag, the key frame start code and
// dimensions, and the compressed first-partition header (segmentation, loop
// filter deltas, quantizer indices, reference buffer refresh and copy flags,
// and the token, mode and motion vector probability updates) using the
// boolean entropy decoder from RFC 6386. Macroblock prediction and residual
// reconstruction are outside this package.
package vp8

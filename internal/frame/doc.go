// Package frame defines SerializedFrame, a compressed VP8 frame labelled with
// the decoder fingerprints before and after it is decoded, and its binary form.
package frame

// Package raster holds decoded pictures shared between decoder states.
//
// A Raster is immutable after construction and carries a content hash computed
// once, so decoder fingerprints and diffs can compare pictures without touching
// pixel data. Holders share rasters by pointer; the garbage collector keeps a
// raster alive for as long as any decoder state, diff, or caller references it.
package raster

// Package main hosts the alfalfa CLI entrypoint and command graph.
//
// The Cobra command tree plays IVF files through the decoder-state player,
// prints fingerprints and decoder diffs, records serialized frames in the
// SQLite catalog, and replays catalog frames while switching between streams.
// Configuration and logging are resolved once per invocation in the command
// context; the heavy lifting lives in the internal packages.
package main

// Package catalog stores serialized frames in SQLite, indexed by the decoder
// fingerprint they start from, so a server can find every frame a client at a
// given state is able to decode.
package catalog

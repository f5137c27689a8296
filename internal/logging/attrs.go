package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent names the part of alfalfa emitting the record.
	FieldComponent = "component"
	// FieldStream names the stream (usually an IVF path) a record refers to.
	FieldStream = "stream"
	// FieldFrameIndex is the zero-based position of a frame inside its stream.
	FieldFrameIndex = "frame_index"
	// FieldFingerprint carries a decoder state fingerprint in hex.
	FieldFingerprint = "fingerprint"
	// FieldBytes is a byte count; the console handler renders it in human units.
	FieldBytes = "bytes"
)

// Attr helpers keep call sites short and the keys above in one place.
type Attr = slog.Attr

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NewComponentLogger tags logger with a component name, which the console
// handler prints as the line prefix. A nil logger yields a silent one.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// NoopHandler discards all log output.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }

func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler { return NoopHandler{} }

func (NoopHandler) WithGroup(string) slog.Handler { return NoopHandler{} }

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type failingHandler struct {
	err error
}

func (failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h failingHandler) Handle(context.Context, slog.Record) error { return h.err }

func (h failingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h failingHandler) WithGroup(string) slog.Handler { return h }

func TestNewFanoutHandlerCollapses(t *testing.T) {
	var buf bytes.Buffer
	sink := slog.NewJSONHandler(&buf, nil)

	tests := []struct {
		name  string
		sinks []slog.Handler
		want  func(slog.Handler) bool
	}{
		{
			name:  "no sinks",
			sinks: nil,
			want:  func(h slog.Handler) bool { _, ok := h.(NoopHandler); return ok },
		},
		{
			name:  "only nil sinks",
			sinks: []slog.Handler{nil, nil},
			want:  func(h slog.Handler) bool { _, ok := h.(NoopHandler); return ok },
		},
		{
			name:  "single sink among nils",
			sinks: []slog.Handler{nil, sink, nil},
			want:  func(h slog.Handler) bool { return h == sink },
		},
		{
			name:  "two sinks",
			sinks: []slog.Handler{sink, sink},
			want:  func(h slog.Handler) bool { _, ok := h.(*fanoutHandler); return ok },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newFanoutHandler(tt.sinks...); !tt.want(got) {
				t.Fatalf("unexpected handler %T", got)
			}
		})
	}
}

func TestFanoutHandlerPerSinkLevels(t *testing.T) {
	var terminal, file bytes.Buffer
	h := newFanoutHandler(
		slog.NewTextHandler(&terminal, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h)

	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug enabled through the file sink")
	}
	logger.Debug("frame decoded", FieldFrameIndex, 3)
	logger.Warn("stream ends with hidden frames")

	if strings.Contains(terminal.String(), "frame decoded") {
		t.Fatalf("terminal sink received a debug record: %q", terminal.String())
	}
	if !strings.Contains(terminal.String(), "stream ends with hidden frames") {
		t.Fatalf("terminal sink missed the warning: %q", terminal.String())
	}
	for _, msg := range []string{"frame decoded", "stream ends with hidden frames"} {
		if !strings.Contains(file.String(), msg) {
			t.Fatalf("file sink missed %q: %q", msg, file.String())
		}
	}
}

func TestFanoutHandlerEnabledNoSink(t *testing.T) {
	var a, b bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected info disabled when every sink starts at warn")
	}
}

func TestFanoutHandlerAttrsAndGroups(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(newFanoutHandler(
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	)).With(FieldStream, "clip.ivf").WithGroup("state")

	logger.Info("decoded", FieldFingerprint, "abc123")

	for name, buf := range map[string]*bytes.Buffer{"first": &a, "second": &b} {
		out := buf.String()
		if !strings.Contains(out, `"stream":"clip.ivf"`) {
			t.Fatalf("%s sink missing stream attr: %q", name, out)
		}
		if !strings.Contains(out, `"state":{"fingerprint":"abc123"}`) {
			t.Fatalf("%s sink missing grouped attr: %q", name, out)
		}
	}
}

func TestFanoutHandlerEmptyGroupIsNoop(t *testing.T) {
	var a, b bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil))
	if h.WithGroup("") != h {
		t.Fatal("expected empty group to return the same handler")
	}
}

func TestFanoutHandlerJoinsErrors(t *testing.T) {
	errDisk := errors.New("disk full")
	errPipe := errors.New("broken pipe")
	var buf bytes.Buffer
	h := newFanoutHandler(
		failingHandler{err: errDisk},
		slog.NewJSONHandler(&buf, nil),
		failingHandler{err: errPipe},
	)

	err := h.Handle(context.Background(), slog.NewRecord(time.Time{}, slog.LevelInfo, "decoded", 0))
	if !errors.Is(err, errDisk) || !errors.Is(err, errPipe) {
		t.Fatalf("expected both sink errors, got %v", err)
	}
	if !strings.Contains(buf.String(), "decoded") {
		t.Fatalf("healthy sink skipped after a failure: %q", buf.String())
	}
}

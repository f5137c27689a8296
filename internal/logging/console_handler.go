package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	consoleTimeLayout = "2006-01-02 15:04:05"
	// Fingerprints are 64 hex digits; a terminal line shows the first 12.
	consoleFingerprintDigits = 12
)

// consoleHandler writes one line per record:
//
//	2026-01-02 15:04:05 INFO play: playing frame_index=3 bytes="1.2 KiB"
//
// Attributes bound with WithAttrs are rendered once, when bound. The
// component attribute becomes the line prefix instead of a pair.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool

	component string
	bound     string
	groups    string
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{mu: new(sync.Mutex), w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	if !h.Enabled(context.Background(), r.Level) {
		return nil
	}
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	component := h.component
	var pairs strings.Builder
	r.Attrs(func(a slog.Attr) bool {
		if h.groups == "" && a.Key == FieldComponent {
			if component == "" {
				component = plainValue(a.Value)
			}
			return true
		}
		writePairs(&pairs, h.groups, a)
		return true
	})

	var line strings.Builder
	line.Grow(96 + len(h.bound) + pairs.Len())
	line.WriteString(ts.Local().Format(consoleTimeLayout))
	line.WriteByte(' ')
	line.WriteString(levelLabel(r.Level))
	line.WriteByte(' ')
	if component != "" {
		line.WriteString(component)
		line.WriteString(": ")
	}
	if msg := strings.TrimSpace(r.Message); msg != "" {
		line.WriteString(msg)
	} else {
		line.WriteString("(no message)")
	}
	if h.addSource {
		if src := r.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&line, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	line.WriteString(h.bound)
	line.WriteString(pairs.String())
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	var bound strings.Builder
	bound.WriteString(h.bound)
	for _, a := range attrs {
		if h.groups == "" && a.Key == FieldComponent {
			next.component = plainValue(a.Value)
			continue
		}
		writePairs(&bound, h.groups, a)
	}
	next.bound = bound.String()
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = h.groups + name + "."
	return &next
}

// writePairs appends " key=value" for a, flattening groups into dotted keys.
func writePairs(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, member := range a.Value.Group() {
			writePairs(b, prefix, member)
		}
		return
	}
	if a.Key == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(consoleValue(a.Key, a.Value))
}

// consoleValue renders byte counts in binary units and shortens state
// fingerprints; everything else goes through plainValue.
func consoleValue(key string, v slog.Value) string {
	switch {
	case key == FieldBytes || strings.HasSuffix(key, "_bytes"):
		switch v.Kind() {
		case slog.KindInt64:
			if n := v.Int64(); n >= 0 {
				return strconv.Quote(humanize.IBytes(uint64(n)))
			}
		case slog.KindUint64:
			return strconv.Quote(humanize.IBytes(v.Uint64()))
		}
	case key == FieldFingerprint || strings.HasSuffix(key, "_fingerprint"):
		if s := plainValue(v); len(s) > consoleFingerprintDigits {
			return s[:consoleFingerprintDigits]
		}
	}
	return quoteIfNeeded(plainValue(v))
}

func plainValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

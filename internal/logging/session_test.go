package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestWithSession(t *testing.T) {
	tests := []struct {
		name    string
		session string
		log     func(*slog.Logger)
		want    []string
		reject  []string
	}{
		{
			name:    "tags records",
			session: "3f1c",
			log:     func(l *slog.Logger) { l.Info("decoded") },
			want:    []string{`"session_id":"3f1c"`},
		},
		{
			name:    "keeps component",
			session: "3f1c",
			log:     func(l *slog.Logger) { NewComponentLogger(l, "player").Info("decoded") },
			want:    []string{`"session_id":"3f1c"`, `"component":"player"`},
		},
		{
			name:    "stays top level under groups",
			session: "3f1c",
			log:     func(l *slog.Logger) { l.WithGroup("diff").Info("computed", "changed", true) },
			want:    []string{`"session_id":"3f1c"`, `"diff":{"changed":true}`},
		},
		{
			name:    "empty id adds nothing",
			session: "",
			log:     func(l *slog.Logger) { l.Info("decoded") },
			reject:  []string{FieldSessionID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(WithSession(slog.New(slog.NewJSONHandler(&buf, nil)), tt.session))
			out := buf.String()
			if !json.Valid(bytes.TrimSpace(buf.Bytes())) {
				t.Fatalf("invalid JSON record %q", out)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("expected %s in %s", want, out)
				}
			}
			for _, reject := range tt.reject {
				if strings.Contains(out, reject) {
					t.Errorf("unexpected %s in %s", reject, out)
				}
			}
		})
	}
}

func TestWithSessionNilLogger(t *testing.T) {
	logger := WithSession(nil, "x")
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected a discarding logger")
	}
}

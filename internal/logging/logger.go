package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"alfalfa/internal/config"
)

// LogFileName is the file written inside paths.log_dir.
const LogFileName = "alfalfa.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Output receives formatted records. Defaults to stderr so command
	// output on stdout stays machine readable.
	Output io.Writer
	// FilePath, when set, additionally receives records as JSON, filtered by
	// FileLevel (debug when empty) instead of Level.
	FilePath    string
	FileLevel   string
	Development bool
}

// New constructs a slog logger using the provided options. The returned
// closer releases the log file and is a no-op when FilePath is empty.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = newJSONHandler(output, levelVar, addSource)
	case "console":
		handler = newConsoleHandler(output, levelVar, addSource)
	default:
		return nil, nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	var closer io.Closer = nopCloser{}
	if path := strings.TrimSpace(opts.FilePath); path != "" {
		file, err := openLogFile(path)
		if err != nil {
			return nil, nil, err
		}
		closer = file
		fileLevel := slog.LevelDebug
		if strings.TrimSpace(opts.FileLevel) != "" {
			fileLevel = parseLevel(opts.FileLevel)
		}
		handler = newFanoutHandler(handler, newJSONHandler(file, fileLevel, addSource || fileLevel <= slog.LevelDebug))
	}

	return slog.New(handler), closer, nil
}

// NewFromConfig creates a logger using application config values.
func NewFromConfig(cfg *config.Config, output io.Writer) (*slog.Logger, io.Closer, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console", Output: output})
	}

	opts := Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: output,
	}
	if cfg.Paths.LogDir != "" {
		opts.FilePath = filepath.Join(cfg.Paths.LogDir, LogFileName)
		opts.FileLevel = cfg.Logging.FileLevel
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

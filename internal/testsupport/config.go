package testsupport

import (
	"path/filepath"
	"testing"

	"alfalfa/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config whose catalog and log directory live in a
// unique temp directory per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Catalog = filepath.Join(base, "catalog.db")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithReconstructor selects the decoder reconstructor on the test config.
func WithReconstructor(name string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Decoder.Reconstructor = name
	}
}

package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.Catalog == "" {
		return errors.New("paths.catalog must be set")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	if !validLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if !validLevel(c.Logging.FileLevel) {
		return fmt.Errorf("logging.file_level: unsupported value %q", c.Logging.FileLevel)
	}
	switch c.Decoder.Reconstructor {
	case ReconstructorIntra, ReconstructorSynthetic:
	default:
		return fmt.Errorf("decoder.reconstructor: unsupported value %q (want %s or %s)",
			c.Decoder.Reconstructor, ReconstructorIntra, ReconstructorSynthetic)
	}
	if c.Serialize.ContinuationEvery < 1 {
		return errors.New("serialize.continuation_every must be at least 1")
	}
	return nil
}

func validLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeDecoder()
	if c.Serialize.ContinuationEvery <= 0 {
		c.Serialize.ContinuationEvery = defaultContinuationEvery
	}
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("ALFALFA_CATALOG"); ok && strings.TrimSpace(value) != "" {
		c.Paths.Catalog = value
	}
	if strings.TrimSpace(c.Paths.Catalog) == "" {
		c.Paths.Catalog = defaultCatalogPath
	}
	var err error
	if c.Paths.Catalog, err = ExpandPath(strings.TrimSpace(c.Paths.Catalog)); err != nil {
		return fmt.Errorf("paths.catalog: %w", err)
	}
	if c.Paths.LogDir, err = ExpandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	if value, ok := os.LookupEnv("ALFALFA_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = value
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.FileLevel = strings.ToLower(strings.TrimSpace(c.Logging.FileLevel))
	if c.Logging.FileLevel == "" {
		c.Logging.FileLevel = defaultLogFileLevel
	}
}

func (c *Config) normalizeDecoder() {
	c.Decoder.Reconstructor = strings.ToLower(strings.TrimSpace(c.Decoder.Reconstructor))
	if c.Decoder.Reconstructor == "" {
		c.Decoder.Reconstructor = defaultReconstructor
	}
}

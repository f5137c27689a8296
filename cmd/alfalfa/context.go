package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"alfalfa/internal/config"
	"alfalfa/internal/decoder"
	"alfalfa/internal/logging"
	"alfalfa/internal/player"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
	logCloser  io.Closer
	sessionID  string
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the session logger once. Records go to stderr so
// tables and JSON on stdout stay clean.
func (c *commandContext) ensureLogger(stderr io.Writer) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		base, closer, err := logging.NewFromConfig(cfg, stderr)
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logCloser = closer
		c.sessionID = uuid.NewString()
		c.logger = logging.WithSession(base, c.sessionID)
	})
	return c.logger, c.loggerErr
}

// Close releases the log file opened by ensureLogger. It is safe to call when
// no logger was built and more than once.
func (c *commandContext) Close() error {
	if c.logCloser == nil {
		return nil
	}
	err := c.logCloser.Close()
	c.logCloser = nil
	return err
}

func (c *commandContext) loggerFor(component string) *slog.Logger {
	return logging.NewComponentLogger(c.logger, component)
}

// playerOptions wires the configured reconstructor and logger into players.
func (c *commandContext) playerOptions(reconstructorName string) ([]player.Option, error) {
	recon, err := reconstructorByName(reconstructorName)
	if err != nil {
		return nil, err
	}
	return []player.Option{
		player.WithReconstructor(recon),
		player.WithLogger(c.logger),
	}, nil
}

func (c *commandContext) configuredReconstructor() string {
	if c.config == nil {
		return config.ReconstructorIntra
	}
	return c.config.Decoder.Reconstructor
}

func reconstructorByName(name string) (decoder.Reconstructor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case config.ReconstructorIntra, "":
		return decoder.IntraReconstructor{}, nil
	case config.ReconstructorSynthetic:
		return decoder.SyntheticReconstructor{}, nil
	default:
		return nil, fmt.Errorf("unknown reconstructor %q", name)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

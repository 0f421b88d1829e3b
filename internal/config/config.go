// Package config loads chunklog settings from defaults, an optional YAML file and
// CHUNKLOG_* environment variables. Command line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"chunklog/internal/logging"
	"chunklog/pkg/stats"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "CHUNKLOG_CONFIG"

// Config holds all chunklog settings.
type Config struct {
	Precision      int           `yaml:"precision"`
	Bins           int           `yaml:"bins"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
	PTY            bool          `yaml:"pty"`
	SampleInterval time.Duration `yaml:"sample_interval"`
	Listen         string        `yaml:"listen"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Precision: stats.DefaultPrecision,
		Bins:      stats.DefaultBins,
		LogLevel:  "info",
		LogFormat: logging.FormatText,
	}
}

// Load returns the defaults overlaid with the file at path and then the environment.
// An empty path falls back to $CHUNKLOG_CONFIG; when that is empty too no file is read.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var err error
	c.LogLevel = getenv("CHUNKLOG_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getenv("CHUNKLOG_LOG_FORMAT", c.LogFormat)
	c.Listen = getenv("CHUNKLOG_LISTEN", c.Listen)
	if c.Precision, err = getenvInt("CHUNKLOG_PRECISION", c.Precision); err != nil {
		return err
	}
	if c.Bins, err = getenvInt("CHUNKLOG_BINS", c.Bins); err != nil {
		return err
	}
	if c.PTY, err = getenvBool("CHUNKLOG_PTY", c.PTY); err != nil {
		return err
	}
	if c.SampleInterval, err = getenvDuration("CHUNKLOG_SAMPLE_INTERVAL", c.SampleInterval); err != nil {
		return err
	}
	return nil
}

// Validate rejects settings no command can work with.
func (c Config) Validate() error {
	var errs []error
	if c.Precision < 0 {
		errs = append(errs, fmt.Errorf("precision must not be negative, got %d", c.Precision))
	}
	if c.Bins < 0 {
		errs = append(errs, fmt.Errorf("bins must not be negative, got %d", c.Bins))
	}
	if c.SampleInterval < 0 {
		errs = append(errs, fmt.Errorf("sample interval must not be negative, got %s", c.SampleInterval))
	}
	if err := logging.CheckFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

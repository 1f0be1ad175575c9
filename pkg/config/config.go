// Package config holds blelink settings: defaults from struct tags, optional
// YAML file overrides and conversion into component options.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-ble/ble"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/srg/blelink/internal/goble"
	"github.com/srg/blelink/pkg/lifecycle"
)

// Output formats accepted by the CLI.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// Config holds application configuration
type Config struct {
	LogLevel       string        `yaml:"log_level" default:"info"`
	OutputFormat   string        `yaml:"output_format" default:"table"`
	Name           string        `yaml:"name"`
	DeviceAddress  string        `yaml:"device_address"`
	NamePrefix     string        `yaml:"name_prefix"`
	Services       []string      `yaml:"services"`
	ScanTimeout    time.Duration `yaml:"scan_timeout" default:"10s"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	EventBuffer    int           `yaml:"event_buffer" default:"16"`
	FeedBuffer     int           `yaml:"feed_buffer" default:"32"`
	JournalSize    int           `yaml:"journal_size" default:"64"`
	EventLog       string        `yaml:"event_log"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file on top of the defaults. Keys missing from the file
// keep their default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	switch c.OutputFormat {
	case OutputTable, OutputJSON:
	default:
		errs = append(errs, fmt.Errorf("output_format: unsupported format %q", c.OutputFormat))
	}
	if _, err := c.ServiceUUIDs(); err != nil {
		errs = append(errs, err)
	}
	if c.DeviceAddress != "" && c.NamePrefix != "" {
		errs = append(errs, errors.New("device_address and name_prefix are mutually exclusive"))
	}
	for name, v := range map[string]int{
		"event_buffer": c.EventBuffer,
		"feed_buffer":  c.FeedBuffer,
		"journal_size": c.JournalSize,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %d", name, v))
		}
	}
	if c.ScanTimeout <= 0 {
		errs = append(errs, fmt.Errorf("scan_timeout: must be positive, got %s", c.ScanTimeout))
	}
	if c.ConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("connect_timeout: must be positive, got %s", c.ConnectTimeout))
	}
	return errors.Join(errs...)
}

// ServiceUUIDs parses the service filter.
func (c *Config) ServiceUUIDs() ([]ble.UUID, error) {
	out := make([]ble.UUID, 0, len(c.Services))
	for _, s := range c.Services {
		u, err := ble.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("services: invalid UUID %q: %w", s, err)
		}
		out = append(out, u)
	}
	return out, nil
}

// MachineOptions converts the buffer settings.
func (c *Config) MachineOptions() *lifecycle.MachineOptions {
	return &lifecycle.MachineOptions{
		EventBuffer: c.EventBuffer,
		FeedBuffer:  c.FeedBuffer,
		JournalSize: c.JournalSize,
	}
}

// RequestOptions converts the device selection settings. Invalid service
// UUIDs are skipped; Validate reports them.
func (c *Config) RequestOptions() *goble.RequestOptions {
	services, _ := c.ServiceUUIDs()
	return &goble.RequestOptions{
		Address:        c.DeviceAddress,
		NamePrefix:     c.NamePrefix,
		Services:       services,
		ScanTimeout:    c.ScanTimeout,
		ConnectTimeout: c.ConnectTimeout,
	}
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

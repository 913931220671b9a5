// Package config loads and validates the daemon configuration from YAML,
// with environment variable overrides for deployment tweaks.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/thermalink/device"
)

// Defaults for every tunable. Timeout values follow the camera firmware's
// observed behavior: discovery completes well under 30s on a healthy link,
// and the session becomes unusable if status confirmation takes longer.
const (
	DefaultScanTimeout       = 30 * time.Second
	DefaultScanInterval      = 100 * time.Millisecond
	DefaultConnectTimeout    = 30 * time.Second
	DefaultConnectInterval   = 100 * time.Millisecond
	DefaultAutoConnectWindow = 60 * time.Second
	DefaultAutoConnectPoll   = 1 * time.Second
	DefaultLockTimeout       = 5 * time.Second
	DefaultHeartbeatInterval = 1 * time.Second
	DefaultMetricsAddr       = ":9464"
)

// Config is the complete daemon configuration.
type Config struct {
	Session   SessionConfig   `yaml:"session"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	NATS      NATSConfig      `yaml:"nats"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	LogLevel  string          `yaml:"log_level"`
}

// SessionConfig tunes the connection lifecycle.
type SessionConfig struct {
	ScanTimeout       time.Duration `yaml:"scan_timeout"`
	ScanInterval      time.Duration `yaml:"scan_interval"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	ConnectInterval   time.Duration `yaml:"connect_interval"`
	AutoConnectWindow time.Duration `yaml:"auto_connect_window"`
	AutoConnectPoll   time.Duration `yaml:"auto_connect_poll"`
	LockTimeout       time.Duration `yaml:"lock_timeout"`

	// StrictAuth fails the connection when the device reports a pending or
	// denied authentication state instead of proceeding and letting the
	// driver reject the session.
	StrictAuth bool `yaml:"strict_auth"`

	// DefaultFormat overrides the priority-ordered format selection when
	// set to a known format name.
	DefaultFormat string `yaml:"default_format"`
}

// HeartbeatConfig tunes the liveness probe.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
	Enabled  *bool         `yaml:"enabled"`
}

// IntervalOrDefault returns the configured interval or the default.
func (h HeartbeatConfig) IntervalOrDefault() time.Duration {
	if h.Interval > 0 {
		return h.Interval
	}
	return DefaultHeartbeatInterval
}

// IsEnabled reports whether the heartbeat should run. Defaults to on.
func (h HeartbeatConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// NATSConfig defines the notification broker connection. An empty URL
// disables outbound notifications.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Addr    string `yaml:"addr"`
	Enabled *bool  `yaml:"enabled"`
}

// IsEnabled reports whether the metrics endpoint should be served.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Default returns a configuration with every tunable at its default.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			ScanTimeout:       DefaultScanTimeout,
			ScanInterval:      DefaultScanInterval,
			ConnectTimeout:    DefaultConnectTimeout,
			ConnectInterval:   DefaultConnectInterval,
			AutoConnectWindow: DefaultAutoConnectWindow,
			AutoConnectPoll:   DefaultAutoConnectPoll,
			LockTimeout:       DefaultLockTimeout,
		},
		Heartbeat: HeartbeatConfig{Interval: DefaultHeartbeatInterval},
		Metrics:   MetricsConfig{Addr: DefaultMetricsAddr},
		LogLevel:  "info",
	}
}

// Load reads a YAML file, applies defaults for unset fields, then applies
// environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %s failed: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse %s failed: %w", path, err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	s := &c.Session
	if s.ScanTimeout <= 0 {
		s.ScanTimeout = DefaultScanTimeout
	}
	if s.ScanInterval <= 0 {
		s.ScanInterval = DefaultScanInterval
	}
	if s.ConnectTimeout <= 0 {
		s.ConnectTimeout = DefaultConnectTimeout
	}
	if s.ConnectInterval <= 0 {
		s.ConnectInterval = DefaultConnectInterval
	}
	if s.AutoConnectWindow <= 0 {
		s.AutoConnectWindow = DefaultAutoConnectWindow
	}
	if s.AutoConnectPoll <= 0 {
		s.AutoConnectPoll = DefaultAutoConnectPoll
	}
	if s.LockTimeout <= 0 {
		s.LockTimeout = DefaultLockTimeout
	}
	if c.Heartbeat.Interval <= 0 {
		c.Heartbeat.Interval = DefaultHeartbeatInterval
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// applyEnv overlays THERMALINK_* environment variables onto the loaded file.
func (c *Config) applyEnv() {
	if v := os.Getenv("THERMALINK_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("THERMALINK_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("THERMALINK_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("THERMALINK_STRICT_AUTH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Session.StrictAuth = b
		}
	}
	if v := os.Getenv("THERMALINK_HEARTBEAT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Heartbeat.Interval = d
		}
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	s := c.Session
	if s.ScanInterval >= s.ScanTimeout {
		return fmt.Errorf("config.Validate: scan_interval %s must be below scan_timeout %s", s.ScanInterval, s.ScanTimeout)
	}
	if s.ConnectInterval >= s.ConnectTimeout {
		return fmt.Errorf("config.Validate: connect_interval %s must be below connect_timeout %s", s.ConnectInterval, s.ConnectTimeout)
	}
	if s.AutoConnectPoll >= s.AutoConnectWindow {
		return fmt.Errorf("config.Validate: auto_connect_poll %s must be below auto_connect_window %s", s.AutoConnectPoll, s.AutoConnectWindow)
	}
	if s.DefaultFormat != "" {
		if _, ok := device.FormatByLabel(s.DefaultFormat); !ok {
			return fmt.Errorf("config.Validate: unknown default_format %q", s.DefaultFormat)
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.Validate: unknown log_level %q", c.LogLevel)
	}
	return nil
}

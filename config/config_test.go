package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thermalink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultScanTimeout, cfg.Session.ScanTimeout)
	assert.Equal(t, DefaultConnectTimeout, cfg.Session.ConnectTimeout)
	assert.Equal(t, DefaultLockTimeout, cfg.Session.LockTimeout)
	assert.Equal(t, DefaultHeartbeatInterval, cfg.Heartbeat.IntervalOrDefault())
	assert.True(t, cfg.Heartbeat.IsEnabled())
	assert.True(t, cfg.Metrics.IsEnabled())
	assert.False(t, cfg.Session.StrictAuth)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
session:
  scan_timeout: 10s
  strict_auth: true
  default_format: Dual
heartbeat:
  interval: 500ms
nats:
  url: nats://localhost:4222
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Session.ScanTimeout)
	assert.True(t, cfg.Session.StrictAuth)
	assert.Equal(t, "Dual", cfg.Session.DefaultFormat)
	assert.Equal(t, 500*time.Millisecond, cfg.Heartbeat.Interval)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Unset fields still receive defaults.
	assert.Equal(t, DefaultConnectTimeout, cfg.Session.ConnectTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/thermalink.yaml")
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("THERMALINK_NATS_URL", "nats://broker:4222")
	t.Setenv("THERMALINK_STRICT_AUTH", "true")
	t.Setenv("THERMALINK_HEARTBEAT_INTERVAL", "250ms")
	t.Setenv("THERMALINK_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.True(t, cfg.Session.StrictAuth)
	assert.Equal(t, 250*time.Millisecond, cfg.Heartbeat.Interval)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"scan interval above timeout", func(c *Config) {
			c.Session.ScanInterval = time.Minute
			c.Session.ScanTimeout = time.Second
		}},
		{"connect interval above timeout", func(c *Config) {
			c.Session.ConnectInterval = time.Minute
			c.Session.ConnectTimeout = time.Second
		}},
		{"auto connect poll above window", func(c *Config) {
			c.Session.AutoConnectPoll = 2 * time.Minute
			c.Session.AutoConnectWindow = time.Second
		}},
		{"unknown format", func(c *Config) {
			c.Session.DefaultFormat = "Mpeg"
		}},
		{"unknown log level", func(c *Config) {
			c.LogLevel = "verbose"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

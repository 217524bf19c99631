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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "INFO"
relay:
  port: 9037
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.Relay.MaxSessions)
	assert.Equal(t, 120*time.Second, cfg.Relay.IdleTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Relay.FrameBudget)
	assert.Equal(t, 5, cfg.Relay.ChecksumLimit)
	assert.Equal(t, DefaultHTTPPort, cfg.HTTP.Port)
	assert.Equal(t, DefaultMetricsPort, cfg.Metrics.Port)
	assert.True(t, cfg.HTTP.IsEnabled())
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "debug"
  format: "json"
relay:
  port: 7001
  max_sessions: 10
  idle_timeout: 30s
  frame_budget: 100ms
http:
  port: 7002
  max_in_flight: 4
  admin_secret: "s3cret"
metrics:
  enabled: true
  port: 7003
policy:
  path: "/etc/nfcmitm/policy.json"
  watch: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level, "level normalized to uppercase")
	assert.Equal(t, 7001, cfg.Relay.Port)
	assert.Equal(t, 10, cfg.Relay.MaxSessions)
	assert.Equal(t, 30*time.Second, cfg.Relay.IdleTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Relay.FrameBudget)
	assert.Equal(t, 7002, cfg.HTTP.Port)
	assert.Equal(t, 4, cfg.HTTP.MaxInFlight)
	assert.Equal(t, "s3cret", cfg.HTTP.AdminSecret)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/etc/nfcmitm/policy.json", cfg.Policy.Path)
	assert.True(t, cfg.Policy.Watch)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRelayPort, cfg.Relay.Port)
}

func TestLoad_InvalidLevelRejected(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "LOUD"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_PortCollisionRejected(t *testing.T) {
	path := writeConfig(t, `
relay:
  port: 8080
http:
  port: 8080
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collides")
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "INFO"
`)
	t.Setenv("NFCMITM_LOGGING_LEVEL", "ERROR")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", cfg.Logging.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Relay.Port = 7777
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, loaded.Relay.Port)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

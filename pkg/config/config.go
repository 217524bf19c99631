// Package config loads and validates the server configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority, applied by the serve command)
//  2. Environment variables (NFCMITM_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Environment variables override only keys that the configuration file
// sets; when no configuration file is found, environment variables are not
// read and the defaults apply.
//
// The runtime-mutable policy blob is separate: it is JSON, referenced by
// Policy.Path, and owned by the policy store.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ghostfacexx/nfcmitm/pkg/api"
)

// Config represents the server configuration.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Relay configures the TCP relay front end.
	Relay RelayConfig `mapstructure:"relay" yaml:"relay"`

	// HTTP configures the HTTP relay server.
	HTTP api.APIConfig `mapstructure:"http" yaml:"http"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Policy locates the runtime policy blob.
	Policy PolicyConfig `mapstructure:"policy" yaml:"policy"`

	// EventQueueSize bounds the logging event sink.
	EventQueueSize int `mapstructure:"event_queue_size" yaml:"event_queue_size"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is the output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether tracing is active. Default: false.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use a non-TLS connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the trace sampling rate (0.0 to 1.0). Default: 1.0.
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// RelayConfig configures the TCP relay listener and session behavior.
type RelayConfig struct {
	// Host is the bind address; empty binds all interfaces.
	Host string `mapstructure:"host" yaml:"host,omitempty"`

	// Port is the TCP relay port. Default: 9037.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// MaxSessions caps concurrent relay sessions. Default: 50.
	MaxSessions int `mapstructure:"max_sessions" yaml:"max_sessions"`

	// IdleTimeout closes connections with no inbound frame. Default: 120s.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// WriteDeadline bounds one outbound frame write. Default: 5s.
	WriteDeadline time.Duration `mapstructure:"write_deadline" yaml:"write_deadline"`

	// FrameBudget is the wall-clock processing budget per frame. Default: 250ms.
	FrameBudget time.Duration `mapstructure:"frame_budget" yaml:"frame_budget"`

	// GracePeriod bounds in-flight work at shutdown. Default: 5s.
	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period"`

	// ChecksumLimit closes a session after this many consecutive checksum
	// mismatches. Default: 5.
	ChecksumLimit int `mapstructure:"checksum_limit" yaml:"checksum_limit"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection and the HTTP server run.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the /metrics endpoint. Default: 9090.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// PolicyConfig locates the runtime policy blob.
type PolicyConfig struct {
	// Path is the JSON policy bootstrap file. Empty starts with all
	// toggles off.
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// Watch re-applies the blob on file change. Default: false.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// Load loads configuration from file, environment, and defaults.
// An empty configPath checks the default location and falls back to pure
// defaults when no file exists there.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if found {
		if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper configures environment variables and the config file location.
// Environment variables use the NFCMITM_ prefix with underscores, e.g.
// NFCMITM_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("NFCMITM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(defaultConfigDir())
}

// readConfigFile reads the config file if present. A missing file is not an
// error; a malformed one is.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// defaultConfigDir resolves $XDG_CONFIG_HOME/nfcmitm (or ~/.config/nfcmitm).
func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "nfcmitm")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nfcmitm")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(DefaultConfigPath())
	return err == nil
}

// Save writes the configuration as YAML with owner-only permissions; the
// admin secret may live in it.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

package config

import (
	"strings"
	"time"
)

// Default ports: the TCP relay rides 9037, HTTP rides 8080, metrics 9090.
const (
	DefaultRelayPort   = 9037
	DefaultHTTPPort    = 8080
	DefaultMetricsPort = 9090
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyRelayDefaults(&cfg.Relay)
	applyMetricsDefaults(&cfg.Metrics)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.EventQueueSize <= 0 {
		cfg.EventQueueSize = 1024
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = DefaultHTTPPort
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyRelayDefaults(cfg *RelayConfig) {
	if cfg.Port <= 0 {
		cfg.Port = DefaultRelayPort
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 50
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.WriteDeadline == 0 {
		cfg.WriteDeadline = 5 * time.Second
	}
	if cfg.FrameBudget == 0 {
		cfg.FrameBudget = 250 * time.Millisecond
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = 5 * time.Second
	}
	if cfg.ChecksumLimit <= 0 {
		cfg.ChecksumLimit = 5
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port <= 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// GetDefaultConfig returns a fully defaulted configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

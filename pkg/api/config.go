package api

import "time"

// APIConfig configures the HTTP relay server.
//
// The HTTP path serves the stateless JSON relay on POST /, health probes,
// and the authenticated policy admin surface.
type APIConfig struct {
	// Enabled controls whether the HTTP server is started.
	// Default: true. A pointer distinguishes "not set" from "explicitly false".
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// MaxInFlight caps concurrent relay requests; excess requests receive
	// 503 immediately. Default: 50
	MaxInFlight int `mapstructure:"max_in_flight" yaml:"max_in_flight"`

	// AdminSecret is the HS256 secret validating bearer tokens on the
	// policy admin endpoints. Empty disables the admin surface.
	AdminSecret string `mapstructure:"admin_secret" yaml:"admin_secret,omitempty"`
}

// IsEnabled returns whether the HTTP server is enabled (default true).
func (c *APIConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// applyDefaults fills in zero values with sensible defaults.
func (c *APIConfig) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 50
	}
}

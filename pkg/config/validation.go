package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against its struct tags plus the
// cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	// The three listeners must not collide.
	ports := map[int]string{cfg.Relay.Port: "relay"}
	if cfg.HTTP.IsEnabled() {
		if other, taken := ports[cfg.HTTP.Port]; taken {
			return fmt.Errorf("http port %d collides with %s", cfg.HTTP.Port, other)
		}
		ports[cfg.HTTP.Port] = "http"
	}
	if cfg.Metrics.Enabled {
		if other, taken := ports[cfg.Metrics.Port]; taken {
			return fmt.Errorf("metrics port %d collides with %s", cfg.Metrics.Port, other)
		}
	}

	return nil
}

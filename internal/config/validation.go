package config

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
)

// Validate checks the configuration for values that would make a session fail late.
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return errors.ConfigError(fmt.Sprintf("unsupported configuration version: %s (expected 1.0)", c.Version)).Build()
	}
	if c.Build.Concurrency < 1 {
		return errors.ConfigError("build.concurrency must be at least 1").Build()
	}
	if _, err := time.ParseDuration(c.Build.Debounce); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid build.debounce").
			WithContext("value", c.Build.Debounce).
			Build()
	}

	seen := make(map[string]struct{}, len(c.Policy.CustomPackages))
	for _, cp := range c.Policy.CustomPackages {
		if cp.ID == "" || cp.Path == "" {
			return errors.ConfigError("custom package requires id and path").
				WithContext("id", cp.ID).
				Build()
		}
		if _, dup := seen[cp.ID]; dup {
			return errors.ConfigError(fmt.Sprintf("duplicate custom package '%s'", cp.ID)).Build()
		}
		seen[cp.ID] = struct{}{}
	}
	return nil
}

// DebounceDuration returns the parsed watch debounce.
func (b BuildConfig) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(b.Debounce)
	if err != nil {
		return 0
	}
	return d
}

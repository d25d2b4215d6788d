package reauth

import (
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
)

type Config struct {
	Enabled              bool
	Interval             time.Duration
	ReauthorizeAfterDays int
}

func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		Interval:             12 * time.Hour,
		ReauthorizeAfterDays: 5,
	}
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		Enabled:              cfg.Reauth.Enabled,
		Interval:             cfg.Reauth.Interval,
		ReauthorizeAfterDays: cfg.Reauth.ReauthorizeAfterDays,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.ReauthorizeAfterDays <= 0 {
		c.ReauthorizeAfterDays = defaults.ReauthorizeAfterDays
	}
	return c
}

// Threshold is the authorization age that triggers a new hold.
func (c Config) Threshold() time.Duration {
	return time.Duration(c.ReauthorizeAfterDays) * 24 * time.Hour
}

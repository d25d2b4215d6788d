package retryqueue

import (
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
)

// Config controls the retry processor loop.
type Config struct {
	Enabled     bool
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		Interval:    60 * time.Second,
		BatchSize:   25,
		MaxAttempts: 5,
	}
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Retry.Enabled,
		Interval:    cfg.Retry.Interval,
		BatchSize:   cfg.Retry.BatchSize,
		MaxAttempts: cfg.Retry.MaxAttempts,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	return c
}

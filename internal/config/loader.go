package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "DEPOSIT"

// Load merges defaults, an optional YAML file and DEPOSIT_* environment variables.
// An empty path skips the file; a missing file at an explicit path is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path = strings.TrimSpace(path)
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Deposits)) {
	case "gorm":
	case "bolt":
		if strings.TrimSpace(c.Storage.BoltPath) == "" {
			return errors.New("storage.bolt_path is required for the bolt deposit store")
		}
	default:
		return fmt.Errorf("unsupported deposit store %q", c.Storage.Deposits)
	}
	if c.Reauth.ReauthorizeAfterDays <= 0 {
		return errors.New("reauth.reauthorize_after_days must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		return errors.New("retry.max_attempts must be positive")
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can override nested values on Unmarshal.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("app_name", cfg.AppName)
	v.SetDefault("environment", cfg.Environment)
	v.SetDefault("version", cfg.Version)

	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.api_key", cfg.HTTP.APIKey)
	v.SetDefault("http.rate_limit", cfg.HTTP.RateLimit)
	v.SetDefault("http.rate_window", cfg.HTTP.RateWindow)
	v.SetDefault("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout)

	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.dsn", cfg.Database.DSN)

	v.SetDefault("storage.deposits", cfg.Storage.Deposits)
	v.SetDefault("storage.bolt_path", cfg.Storage.BoltPath)

	v.SetDefault("stripe.secret_key", cfg.Stripe.SecretKey)
	v.SetDefault("stripe.webhook_secret", cfg.Stripe.WebhookSecret)
	v.SetDefault("stripe.webhook_tolerance", cfg.Stripe.WebhookTolerance)

	v.SetDefault("notification.webhook_url", cfg.Notification.WebhookURL)
	v.SetDefault("notification.timeout", cfg.Notification.Timeout)

	v.SetDefault("reauth.enabled", cfg.Reauth.Enabled)
	v.SetDefault("reauth.interval", cfg.Reauth.Interval)
	v.SetDefault("reauth.reauthorize_after_days", cfg.Reauth.ReauthorizeAfterDays)

	v.SetDefault("retry.enabled", cfg.Retry.Enabled)
	v.SetDefault("retry.interval", cfg.Retry.Interval)
	v.SetDefault("retry.batch_size", cfg.Retry.BatchSize)
	v.SetDefault("retry.max_attempts", cfg.Retry.MaxAttempts)

	v.SetDefault("observability.service_name", cfg.Observability.ServiceName)
	v.SetDefault("observability.tracing.enabled", cfg.Observability.Tracing.Enabled)
	v.SetDefault("observability.tracing.endpoint", cfg.Observability.Tracing.Endpoint)
	v.SetDefault("observability.tracing.protocol", cfg.Observability.Tracing.Protocol)
	v.SetDefault("observability.tracing.sampling_ratio", cfg.Observability.Tracing.SamplingRatio)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

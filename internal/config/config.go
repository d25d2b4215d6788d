package config

import (
	"strings"
	"time"
)

// Config is the effective service configuration.
type Config struct {
	AppName     string `mapstructure:"app_name" yaml:"app_name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
	Version     string `mapstructure:"version" yaml:"version"`

	HTTP          HTTPConfig          `mapstructure:"http" yaml:"http"`
	Database      DatabaseConfig      `mapstructure:"database" yaml:"database"`
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
	Stripe        StripeConfig        `mapstructure:"stripe" yaml:"stripe"`
	Notification  NotificationConfig  `mapstructure:"notification" yaml:"notification"`
	Reauth        ReauthConfig        `mapstructure:"reauth" yaml:"reauth"`
	Retry         RetryConfig         `mapstructure:"retry" yaml:"retry"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	APIKey          string        `mapstructure:"api_key" yaml:"api_key"`
	RateLimit       int           `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateWindow      time.Duration `mapstructure:"rate_window" yaml:"rate_window"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type StorageConfig struct {
	// Deposits selects the deposit repository adapter: "gorm" or "bolt".
	Deposits string `mapstructure:"deposits" yaml:"deposits"`
	BoltPath string `mapstructure:"bolt_path" yaml:"bolt_path"`
}

type StripeConfig struct {
	SecretKey        string        `mapstructure:"secret_key" yaml:"secret_key"`
	WebhookSecret    string        `mapstructure:"webhook_secret" yaml:"webhook_secret"`
	WebhookTolerance time.Duration `mapstructure:"webhook_tolerance" yaml:"webhook_tolerance"`
}

type NotificationConfig struct {
	WebhookURL string        `mapstructure:"webhook_url" yaml:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type ReauthConfig struct {
	Enabled              bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval             time.Duration `mapstructure:"interval" yaml:"interval"`
	ReauthorizeAfterDays int           `mapstructure:"reauthorize_after_days" yaml:"reauthorize_after_days"`
}

type RetryConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	BatchSize   int           `mapstructure:"batch_size" yaml:"batch_size"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

type ObservabilityConfig struct {
	ServiceName string        `mapstructure:"service_name" yaml:"service_name"`
	Tracing     TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

type TracingConfig struct {
	Enabled       bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint      string  `mapstructure:"endpoint" yaml:"endpoint"`
	Protocol      string  `mapstructure:"protocol" yaml:"protocol"`
	SamplingRatio float64 `mapstructure:"sampling_ratio" yaml:"sampling_ratio"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// Masked returns a copy with secrets replaced, suitable for printing.
func (c Config) Masked() Config {
	c.HTTP.APIKey = maskSecret(c.HTTP.APIKey)
	c.Stripe.SecretKey = maskSecret(c.Stripe.SecretKey)
	c.Stripe.WebhookSecret = maskSecret(c.Stripe.WebhookSecret)
	return c
}

func maskSecret(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}

package config

import "time"

// DefaultConfig returns the configuration used when no file or env overrides are present.
func DefaultConfig() Config {
	return Config{
		AppName:     "stripe-deposit",
		Environment: "development",
		Version:     "dev",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			RateLimit:       120,
			RateWindow:      time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "deposits.db",
		},
		Storage: StorageConfig{
			Deposits: "gorm",
			BoltPath: "deposits.bolt",
		},
		Stripe: StripeConfig{
			WebhookTolerance: 300 * time.Second,
		},
		Notification: NotificationConfig{
			Timeout: 5 * time.Second,
		},
		Reauth: ReauthConfig{
			Enabled:              true,
			Interval:             12 * time.Hour,
			ReauthorizeAfterDays: 5,
		},
		Retry: RetryConfig{
			Enabled:     true,
			Interval:    time.Minute,
			BatchSize:   25,
			MaxAttempts: 5,
		},
		Observability: ObservabilityConfig{
			ServiceName: "stripe-deposit",
			Tracing: TracingConfig{
				Protocol:      "grpc",
				SamplingRatio: 0.1,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

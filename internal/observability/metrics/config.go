package metrics

import (
	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Config labels every instrument with the service identity.
type Config struct {
	ServiceName string
	Environment string
}

var Module = fx.Module("metrics",
	fx.Provide(func(cfg config.Config) Config {
		return Config{
			ServiceName: cfg.Observability.ServiceName,
			Environment: cfg.Environment,
		}
	}),
	fx.Provide(JobsWithConfig),
	fx.Provide(func(cfg Config) (*HTTPMetrics, error) {
		return NewHTTPMetrics(prometheus.DefaultRegisterer, cfg)
	}),
)

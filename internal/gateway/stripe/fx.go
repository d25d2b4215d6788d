package stripe

import (
	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
	gatewaydomain "github.com/1rokoko/stripe-deposit-sub000/internal/gateway/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("gateway.stripe",
	fx.Provide(func(cfg config.Config, log *zap.Logger) (gatewaydomain.Gateway, error) {
		return NewClient(cfg.Stripe.SecretKey, log, Options{MaxNetworkRetries: 2})
	}),
)

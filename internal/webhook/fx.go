package webhook

import (
	"github.com/1rokoko/stripe-deposit-sub000/internal/clock"
	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
	"github.com/1rokoko/stripe-deposit-sub000/internal/retryqueue"
	webhookdomain "github.com/1rokoko/stripe-deposit-sub000/internal/webhook/domain"
	"github.com/1rokoko/stripe-deposit-sub000/internal/webhook/repository"
	"github.com/1rokoko/stripe-deposit-sub000/internal/webhook/service"
	"github.com/1rokoko/stripe-deposit-sub000/internal/webhook/signature"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config, clk clock.Clock) service.Verifier {
		return signature.NewVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.WebhookTolerance, clk)
	}),
	fx.Provide(func(q *retryqueue.Store) service.RetryQueue { return q }),
	fx.Provide(service.NewInterpreter),
	fx.Provide(service.NewService),
	fx.Provide(func(s webhookdomain.Service) retryqueue.Handler { return s }),
)

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/1rokoko/stripe-deposit-sub000/internal/clock"
	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
	"github.com/1rokoko/stripe-deposit-sub000/internal/deposit"
	"github.com/1rokoko/stripe-deposit-sub000/internal/gateway/stripe"
	"github.com/1rokoko/stripe-deposit-sub000/internal/jobhealth"
	"github.com/1rokoko/stripe-deposit-sub000/internal/notification"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/logger"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/metrics"
	"github.com/1rokoko/stripe-deposit-sub000/internal/observability/tracing"
	"github.com/1rokoko/stripe-deposit-sub000/internal/reauth"
	"github.com/1rokoko/stripe-deposit-sub000/internal/retryqueue"
	"github.com/1rokoko/stripe-deposit-sub000/internal/storage"
	"github.com/1rokoko/stripe-deposit-sub000/internal/webhook"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// baseModules wires configuration, logging and storage.
func baseModules() fx.Option {
	return fx.Options(
		fx.Supply(config.Path(configPath)),
		config.Module,
		logger.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zap.DebugLevel)
			return l
		}),
		clock.Module,
		storage.Module,
		storage.MigrateOnStart,
	)
}

// serviceModules wires every domain service without starting workers or the
// HTTP listener.
func serviceModules() fx.Option {
	return fx.Options(
		baseModules(),
		tracing.Module,
		metrics.Module,
		jobhealth.Module,
		notification.Module,
		stripe.Module,
		deposit.Module,
		retryqueue.Module,
		webhook.Module,
		reauth.Module,
	)
}

// runOnce starts app, calls fn, and stops app regardless of fn's outcome.
func runOnce(ctx context.Context, app *fx.App, fn func(context.Context) error) error {
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx)
	stopErr := app.Stop(context.WithoutCancel(ctx))
	if runErr != nil {
		return runErr
	}
	return stopErr
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

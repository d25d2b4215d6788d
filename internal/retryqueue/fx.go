package retryqueue

import (
	"context"

	"github.com/1rokoko/stripe-deposit-sub000/internal/jobhealth"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the queue store and processor. The processor loop is
// started separately by Worker so one-shot commands can reuse the wiring.
var Module = fx.Module("webhook.retry",
	fx.Provide(ConfigFrom),
	fx.Provide(NewStore),
	fx.Provide(func(s *jobhealth.Store) HealthRecorder { return s }),
	fx.Provide(NewProcessor),
)

var Worker = fx.Module("webhook.retry.worker",
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, processor *Processor, log *zap.Logger) {
	if !processor.Config().Enabled {
		log.Info("webhook retry processor disabled")
		return
	}
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go processor.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}

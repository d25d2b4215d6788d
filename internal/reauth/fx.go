package reauth

import (
	"context"

	depositdomain "github.com/1rokoko/stripe-deposit-sub000/internal/deposit/domain"
	"github.com/1rokoko/stripe-deposit-sub000/internal/jobhealth"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("reauth.scheduler",
	fx.Provide(ConfigFrom),
	fx.Provide(NewScheduler),
	fx.Provide(func(repo depositdomain.Repository) Lister { return repo }),
	fx.Provide(func(svc depositdomain.Service) Reauthorizer { return svc }),
	fx.Provide(func(store *jobhealth.Store) HealthRecorder { return store }),
)

var Worker = fx.Module("reauth.scheduler.worker",
	fx.Invoke(runScheduler),
)

func runScheduler(lc fx.Lifecycle, scheduler *Scheduler, log *zap.Logger) {
	if !scheduler.Config().Enabled {
		log.Info("reauthorization scheduler disabled")
		return
	}
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go scheduler.RunForever(ctx)
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

package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
	"github.com/1rokoko/stripe-deposit-sub000/internal/jobhealth"
	"github.com/1rokoko/stripe-deposit-sub000/internal/retryqueue"
	"github.com/1rokoko/stripe-deposit-sub000/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(func(q *retryqueue.Store) DeadLetterStore { return q }),
	fx.Provide(func(s *jobhealth.Store) JobHealthLister { return s }),
	fx.Provide(func(db *gorm.DB) Pinger { return storage.Pinger(db) }),
	fx.Provide(NewServer),
	fx.Invoke(runServer),
)

func runServer(lc fx.Lifecycle, cfg config.Config, srv *Server, log *zap.Logger) {
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	shutdownTimeout := cfg.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", httpServer.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(ctx)
		},
	})
}

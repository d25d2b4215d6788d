package logger

import (
	"context"
	"strings"

	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
	obsctx "github.com/1rokoko/stripe-deposit-sub000/internal/observability/context"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Module = fx.Module("logger",
	fx.Provide(New),
	fx.Invoke(registerSync),
)

// New builds the process logger and installs it as the zap global.
func New(cfg config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if strings.EqualFold(strings.TrimSpace(cfg.Log.Format), "console") {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "timestamp"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(strings.TrimSpace(cfg.Log.Level))
	if err != nil {
		level = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	log, err := zcfg.Build(zap.Fields(
		zap.String("service", cfg.AppName),
		zap.String("env", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}

func registerSync(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
}

// FromContext returns the global logger decorated with request and trace identifiers.
func FromContext(ctx context.Context) *zap.Logger {
	log := zap.L()
	if ctx == nil {
		return log
	}
	scope := obsctx.ScopeFrom(ctx)
	fields := make([]zap.Field, 0, 6)
	if scope.RequestID != "" {
		fields = append(fields, zap.String("request_id", scope.RequestID))
	}
	if scope.DepositID != "" {
		fields = append(fields, zap.String("deposit_id", scope.DepositID))
	}
	if scope.Actor.Type != "" {
		fields = append(fields, zap.String("actor_type", scope.Actor.Type))
		if scope.Actor.ID != "" {
			fields = append(fields, zap.String("actor_id", scope.Actor.ID))
		}
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

package tracing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/1rokoko/stripe-deposit-sub000/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultSamplingRatio = 0.1
	exporterDialTimeout  = 5 * time.Second
)

// Config selects the span exporter and sampling for the process.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Protocol       string
	SamplingRatio  float64
}

var Module = fx.Module("tracing",
	fx.Provide(ConfigFrom, NewProvider),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func ConfigFrom(cfg config.Config) Config {
	t := cfg.Observability.Tracing
	return Config{
		Enabled:        t.Enabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Endpoint:       strings.TrimSpace(t.Endpoint),
		Protocol:       strings.ToLower(strings.TrimSpace(t.Protocol)),
		SamplingRatio:  t.SamplingRatio,
	}
}

// ratio clamps the configured sampling ratio to (0, 1].
func (c Config) ratio() float64 {
	switch {
	case c.SamplingRatio <= 0:
		return defaultSamplingRatio
	case c.SamplingRatio > 1:
		return 1
	}
	return c.SamplingRatio
}

// NewProvider installs W3C propagation and, when enabled, an OTLP batch
// exporter. A nil provider is returned when tracing is disabled; spans
// started through this package are then no-ops.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (*sdktrace.TracerProvider, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nil, nil
	}

	exporter, err := dialExporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.ratio()))),
	)
	otel.SetTracerProvider(provider)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return provider.Shutdown(ctx)
		},
	})
	log.Info("tracing enabled",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("protocol", cfg.Protocol),
		zap.Float64("sampling_ratio", cfg.ratio()),
	)
	return provider, nil
}

func dialExporter(cfg Config) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), exporterDialTimeout)
	defer cancel()

	switch cfg.Protocol {
	case "", "grpc", "grpc/protobuf":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		var opts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported protocol %q", cfg.Protocol)
}

package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/1rokoko/stripe-deposit-sub000"

// Start opens an internal span for a deposit operation.
func Start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, operation, trace.WithAttributes(attrs...))
}

// End closes span, marking it failed when err is non-nil. Only the error's
// type is recorded; gateway messages may echo card details.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(fmt.Errorf("%T", err))
		span.SetStatus(codes.Error, "failed")
	}
	span.End()
}

func DepositID(id string) attribute.KeyValue {
	return attribute.String("deposit.id", id)
}

func PaymentIntentID(id string) attribute.KeyValue {
	return attribute.String("payment_intent.id", id)
}

func EventType(eventType string) attribute.KeyValue {
	return attribute.String("webhook.event_type", eventType)
}

func Job(name string) attribute.KeyValue {
	return attribute.String("job.name", name)
}
